package server

import "html/template"

// indexTemplate is the web interface, rendered with a metrics.Snapshot.
var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>Load Testing Application</title>
    <meta charset="utf-8">
    <style>
        body { font-family: Arial, sans-serif; margin: 40px; background: #f5f5f5; }
        .container { max-width: 800px; margin: 0 auto; background: white; padding: 20px; border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        .metrics { background: #e8f4f8; padding: 15px; border-radius: 4px; margin: 20px 0; }
        .form-group { margin: 15px 0; }
        label { display: block; margin-bottom: 5px; font-weight: bold; }
        input, select { padding: 8px; width: 200px; border: 1px solid #ddd; border-radius: 4px; }
        button { background: #007cba; color: white; padding: 10px 20px; border: none; border-radius: 4px; cursor: pointer; margin: 5px; }
        button:hover { background: #005a87; }
        .status { padding: 10px; margin: 10px 0; border-radius: 4px; }
        .success { background: #d4edda; border: 1px solid #c3e6cb; color: #155724; }
        .error { background: #f8d7da; border: 1px solid #f5c6cb; color: #721c24; }
    </style>
</head>
<body>
    <div class="container">
        <h1>Load Testing Application</h1>
        <p>Kubernetes load generator for monitoring and security testing</p>

        <div class="metrics">
            <h3>System Metrics</h3>
            <p><strong>CPU Usage:</strong> {{printf "%.1f" .CPUUsage}}%</p>
            <p><strong>Memory Usage:</strong> {{printf "%.1f" .MemoryUsage}}%</p>
            <p><strong>Active Stress Tests:</strong> {{.StressTestsRunning}}</p>
            <p><strong>Total Requests:</strong> {{.RequestsTotal}}</p>
            <p><strong>Echo Requests:</strong> {{.EchoRequestsTotal}} ({{.EchoRequestsFailed}} failed)</p>
        </div>

        <form action="/stress" method="post">
            <h3>Start Stress Test</h3>

            <div class="form-group">
                <label for="cpu_workers">CPU Workers:</label>
                <input type="number" id="cpu_workers" name="cpu_workers" value="2" min="1" max="16">
            </div>

            <div class="form-group">
                <label for="memory_workers">Memory Workers:</label>
                <input type="number" id="memory_workers" name="memory_workers" value="1" min="1" max="8">
            </div>

            <div class="form-group">
                <label for="duration_seconds">Duration (seconds):</label>
                <input type="number" id="duration_seconds" name="duration_seconds" value="30" min="5" max="3600">
            </div>

            <div class="form-group">
                <label for="memory_size">Memory Size:</label>
                <select id="memory_size" name="memory_size">
                    <option value="128M">128MB</option>
                    <option value="256M" selected>256MB</option>
                    <option value="512M">512MB</option>
                    <option value="1G">1GB</option>
                </select>
            </div>

            <button type="submit">Start Stress Test</button>
        </form>

        <form action="/stop" method="post">
            <button type="submit">Stop All Tests</button>
        </form>

        <form action="/echo" method="post">
            <h3>Call Echo Service</h3>

            <div class="form-group">
                <label for="message">Message:</label>
                <input type="text" id="message" name="message" value="Hello from Load Test!">
            </div>

            <div class="form-group">
                <label for="method">Method:</label>
                <select id="method" name="method">
                    <option value="POST" selected>POST</option>
                    <option value="GET">GET</option>
                </select>
            </div>

            <div class="form-group">
                <label>
                    <input type="checkbox" name="vulnerable_payload" value="true">
                    Send vulnerable payload
                </label>
            </div>

            <button type="submit">Send Echo Request</button>
        </form>

        <div style="margin-top: 30px;">
            <h3>API Endpoints</h3>
            <p><code>GET /health</code> - Health Check</p>
            <p><code>GET /metrics</code> - System Metrics (JSON)</p>
            <p><code>GET /metrics/prometheus</code> - Prometheus Scrape</p>
            <p><code>GET /status</code> - Current Status</p>
            <p><code>POST /stress</code> - Start Stress Test</p>
            <p><code>POST /stop</code> - Stop All Tests</p>
            <p><code>POST /echo</code> - Call Echo Service</p>
        </div>
    </div>
</body>
</html>
`))
