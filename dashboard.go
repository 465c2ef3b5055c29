package main

const dashboardHTML = `
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>LTE Monitoring</title>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body {
            font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif;
            background: #111111;
            color: white;
            min-height: 100vh;
            padding: 20px;
        }
        h1 { text-align: center; margin-bottom: 15px; }
        .filter { text-align: center; margin-bottom: 20px; font-size: 18px; }
        .filter label { margin: 0 8px; cursor: pointer; }
        .row { display: flex; flex-wrap: wrap; margin-bottom: 10px; }
        .stat {
            flex: 1;
            background: #34495e;
            padding: 10px;
            margin: 5px;
            border-radius: 10px;
            text-align: center;
        }
        .badges { flex: 1; display: flex; flex-direction: column; }
        .badge {
            margin: 5px;
            padding: 10px;
            border-radius: 10px;
            text-align: center;
            background: #7f8c8d;
        }
        .reference {
            flex: 1.5;
            margin: 5px;
            background: #2c3e50;
            padding: 15px;
            border-radius: 10px;
        }
        table { width: 100%; border-collapse: collapse; font-size: 13px; }
        th { background: #1a1a1a; font-weight: bold; padding: 6px; }
        td { background: #2c3e50; text-align: center; padding: 6px; border-bottom: 1px solid #34495e; }
        .chart { background: #111111; height: 350px; margin: 15px 0; position: relative; }
        .spikes { padding: 20px; }
        .spikes h4 { text-align: center; margin-bottom: 10px; }
        .hint { text-align: center; color: #7f8c8d; font-size: 12px; }
    </style>
    <script src="https://cdn.jsdelivr.net/npm/chart.js"></script>
    <script src="https://cdn.jsdelivr.net/npm/chartjs-adapter-date-fns"></script>
    <script src="https://cdn.jsdelivr.net/npm/hammerjs"></script>
    <script src="https://cdn.jsdelivr.net/npm/chartjs-plugin-zoom"></script>
    <script src="https://cdn.jsdelivr.net/npm/chartjs-plugin-annotation"></script>
</head>
<body>
    <h1 id="dynamic-title">Loading...</h1>

    <div class="filter" id="time-filter">
        {{range .Windows}}<label><input type="radio" name="window" value="{{.Value}}"{{if .Selected}} checked{{end}}> {{.Label}}</label>{{end}}
    </div>

    <div class="row">
        <div class="stat" id="uptime-stat"></div>
        <div class="stat" id="band-stat"></div>
    </div>

    <div class="row">
        <div class="badges">
            <div class="badge" id="rssi-card"></div>
            <div class="badge" id="rsrp-card"></div>
            <div class="badge" id="rsrq-card"></div>
        </div>
        <div class="reference">
            <table>
                <tr><th>Metric</th><th>Excellent</th><th>Good</th><th>Weak</th><th>Poor</th></tr>
                {{range .Thresholds}}<tr><td>{{.Metric}}</td><td>{{.Excellent}}</td><td>{{.Good}}</td><td>{{.Weak}}</td><td>{{.Poor}}</td></tr>{{end}}
            </table>
        </div>
    </div>

    <div class="chart"><canvas id="rf-metrics-graph"></canvas></div>
    <div class="chart"><canvas id="quality-graph"></canvas></div>
    <p class="hint">Scroll to zoom, drag to pan, double-click to reset.</p>

    <div class="spikes">
        <h4>Top 5 Latency Spikes (Current View)</h4>
        <table>
            <thead><tr><th>time</th><th>band</th><th>latency_max_ms</th></tr></thead>
            <tbody id="latency-table"></tbody>
        </table>
    </div>

    <script>
        const refreshMs = {{.Refresh}};
        let ws;
        let reconnectTimeout;
        let currentWindow = document.querySelector('input[name="window"]:checked').value;
        const charts = {};
        const revisions = {};

        function connectWebSocket() {
            const protocol = window.location.protocol === 'https:' ? 'wss:' : 'ws:';
            ws = new WebSocket(protocol + '//' + window.location.host + '/ws?window=' + encodeURIComponent(currentWindow));

            ws.onmessage = function(event) {
                const msg = JSON.parse(event.data);
                if (msg.type === 'dashboard') {
                    render(msg.data);
                }
            };

            ws.onclose = function() {
                reconnectTimeout = setTimeout(connectWebSocket, refreshMs);
            };

            ws.onerror = function(error) {
                console.error('WebSocket error:', error);
            };
        }

        document.querySelectorAll('input[name="window"]').forEach(function(input) {
            input.addEventListener('change', function() {
                currentWindow = input.value;
                if (ws && ws.readyState === WebSocket.OPEN) {
                    ws.send(JSON.stringify({window: currentWindow}));
                }
            });
        });

        function render(view) {
            if (view.window !== currentWindow) {
                return;
            }
            document.getElementById('dynamic-title').textContent = view.title || '';
            if (view.uptime) document.getElementById('uptime-stat').textContent = view.uptime;
            if (view.band) document.getElementById('band-stat').textContent = view.band;

            (view.badges || []).forEach(function(b) {
                const card = document.getElementById(b.kind + '-card');
                card.textContent = b.label;
                card.style.backgroundColor = b.color;
            });

            if (view.signal_chart) drawChart('rf-metrics-graph', view.signal_chart);
            if (view.latency_chart) drawChart('quality-graph', view.latency_chart);
            if (view.latency_table) renderTable(view.latency_table);
        }

        function renderTable(rows) {
            const body = document.getElementById('latency-table');
            body.innerHTML = '';
            rows.forEach(function(r) {
                const tr = document.createElement('tr');
                [r.time, r.band, r.latency_ms].forEach(function(v) {
                    const td = document.createElement('td');
                    td.textContent = v;
                    tr.appendChild(td);
                });
                body.appendChild(tr);
            });
        }

        function datasets(spec) {
            return spec.series.map(function(s) {
                return {
                    label: s.name,
                    borderColor: s.color,
                    backgroundColor: s.color,
                    pointRadius: 0,
                    borderWidth: 1.5,
                    spanGaps: false,
                    data: s.x.map(function(x, i) { return {x: x, y: s.y[i]}; })
                };
            });
        }

        function markers(spec) {
            const out = {};
            spec.markers.forEach(function(m, i) {
                out['band' + i] = {
                    type: 'line',
                    scaleID: 'x',
                    value: m.x,
                    borderColor: m.color,
                    borderWidth: 1,
                    borderDash: [2, 3],
                    label: {
                        display: true,
                        content: m.label,
                        rotation: -90,
                        position: 'end',
                        color: 'white',
                        backgroundColor: 'rgba(0,0,0,0)',
                        font: {size: 10}
                    }
                };
            });
            return out;
        }

        // Charts are updated in place so zoom and pan survive refreshes.
        // A new uirevision resets the view.
        function drawChart(id, spec) {
            let chart = charts[id];
            if (chart && revisions[id] === spec.uirevision) {
                chart.data.datasets = datasets(spec);
                chart.options.plugins.annotation.annotations = markers(spec);
                chart.update('none');
                return;
            }
            if (chart) chart.destroy();
            revisions[id] = spec.uirevision;
            charts[id] = new Chart(document.getElementById(id).getContext('2d'), {
                type: 'line',
                data: {datasets: datasets(spec)},
                options: {
                    responsive: true,
                    maintainAspectRatio: false,
                    animation: false,
                    color: '#ecf0f1',
                    scales: {
                        x: {type: 'time', ticks: {color: '#ecf0f1'}, grid: {color: 'rgba(255,255,255,0.08)'}},
                        y: {ticks: {color: '#ecf0f1'}, grid: {color: 'rgba(255,255,255,0.08)'}}
                    },
                    plugins: {
                        title: {display: true, text: spec.title, color: '#ecf0f1'},
                        legend: {labels: {color: '#ecf0f1'}},
                        annotation: {annotations: markers(spec)},
                        zoom: {
                            zoom: {wheel: {enabled: true}, mode: 'x'},
                            pan: {enabled: true, mode: 'x'}
                        }
                    }
                }
            });
            document.getElementById(id).ondblclick = function() { charts[id].resetZoom(); };
        }

        connectWebSocket();

        // Initial view before the socket delivers one
        fetch('/api/dashboard?window=' + encodeURIComponent(currentWindow))
            .then(function(response) { return response.json(); })
            .then(render)
            .catch(function(error) { console.error('Error fetching dashboard:', error); });
    </script>
</body>
</html>
`
