package main

import (
	"context"
	"encoding/json"
	"html/template"
	"net/http"
	"strconv"
	"sync"
	"time"

	"bms-service/bms"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebServer serves the live dashboard: an HTML page, a JSON snapshot
// endpoint, the two setter endpoints and a websocket that pushes a
// fresh snapshot on every acquisition update.
type WebServer struct {
	log    *LeveledLogger
	app    *MonitorApp
	server *http.Server
	signal *sync.Cond
}

func NewWebServer(logger *LeveledLogger, app *MonitorApp, listen string) *WebServer {
	ws := &WebServer{
		log:    logger,
		app:    app,
		signal: sync.NewCond(&sync.Mutex{}),
	}

	router := mux.NewRouter().StrictSlash(true)
	router.HandleFunc("/", ws.getDashboard).Methods("GET")
	router.HandleFunc("/api/status", ws.getStatus).Methods("GET")
	router.HandleFunc("/api/cells", ws.setCells).Methods("GET", "PUT")
	router.HandleFunc("/api/current", ws.setCurrent).Methods("GET", "PUT")
	router.HandleFunc("/ws", ws.startDataWebSocket).Methods("GET")

	ws.server = &http.Server{
		Addr:    listen,
		Handler: router,
	}

	return ws
}

func (ws *WebServer) Serve() error {
	err := ws.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (ws *WebServer) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := ws.server.Shutdown(ctx); err != nil {
		ws.log.Error("Dashboard shutdown error: %v", err)
	}
	ws.Broadcast()
}

// Broadcast wakes every websocket subscriber so they push the latest
// snapshot. Called from the scheduler goroutine after each update.
func (ws *WebServer) Broadcast() {
	ws.signal.Broadcast()
}

// statusPayload is the flat JSON representation of the snapshot.
type statusPayload struct {
	Cells   []float64 `json:"cells"`
	Total   float64   `json:"total"`
	Avg     float64   `json:"avg"`
	Min     float64   `json:"min"`
	Max     float64   `json:"max"`
	Diff    float64   `json:"diff"`
	Temp    float64   `json:"temp"`
	Count   int       `json:"count"`
	Current float64   `json:"current"`
	CAN     bool      `json:"can"`
}

func buildStatus(snap bms.Snapshot) statusPayload {
	cells := make([]float64, snap.CellCount)
	for i := range cells {
		cells[i] = round3(snap.CellVoltages[i])
	}

	min, max := snap.MinMax()

	return statusPayload{
		Cells:   cells,
		Total:   round3(snap.Total()),
		Avg:     round3(snap.Average()),
		Min:     round3(min),
		Max:     round3(max),
		Diff:    round3(snap.Diff()),
		Temp:    round1(snap.TemperatureC),
		Count:   snap.CellCount,
		Current: round3(snap.CurrentSettingA),
		CAN:     snap.TransceiverPresent,
	}
}

func (ws *WebServer) writeJSON(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		ws.log.Error("Failed to encode response: %v", err)
	}
}

func (ws *WebServer) getStatus(w http.ResponseWriter, r *http.Request) {
	ws.writeJSON(w, buildStatus(ws.app.Snapshot()))
}

func (ws *WebServer) setCells(w http.ResponseWriter, r *http.Request) {
	count, err := strconv.Atoi(r.URL.Query().Get("count"))
	if err != nil {
		http.Error(w, "invalid cell count", http.StatusBadRequest)
		return
	}

	ws.app.SetCellCount(count)
	ws.writeJSON(w, buildStatus(ws.app.Snapshot()))
}

func (ws *WebServer) setCurrent(w http.ResponseWriter, r *http.Request) {
	amps, err := strconv.ParseFloat(r.URL.Query().Get("value"), 64)
	if err != nil {
		http.Error(w, "invalid current value", http.StatusBadRequest)
		return
	}

	ws.app.SetCurrent(amps)
	ws.writeJSON(w, buildStatus(ws.app.Snapshot()))
}

// startDataWebSocket pushes the snapshot to the subscriber on every
// acquisition update, so clients don't need to poll.
func (ws *WebServer) startDataWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		ws.log.Error("Websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	for {
		ws.signal.L.Lock()
		ws.signal.Wait()
		ws.signal.L.Unlock()

		payload, err := json.Marshal(buildStatus(ws.app.Snapshot()))
		if err != nil {
			ws.log.Error("Failed to encode websocket payload: %v", err)
			return
		}
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			ws.log.Debug("Websocket subscriber gone: %v", err)
			return
		}
	}
}

func (ws *WebServer) getDashboard(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	data := struct {
		Name    string
		Version string
	}{ProjectName, ProjectVersion}

	if err := dashboardTemplate.Execute(w, data); err != nil {
		ws.log.Error("Failed to render dashboard: %v", err)
	}
}

var dashboardTemplate = template.Must(template.New("dashboard").Parse(dashboardHTML))

const dashboardHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Name}}</title>
<style>
body { font-family: sans-serif; margin: 2em; background: #111; color: #eee; }
table { border-collapse: collapse; }
td, th { border: 1px solid #444; padding: 4px 10px; text-align: right; }
.stats span { margin-right: 2em; }
input { width: 5em; }
</style>
</head>
<body>
<h1>{{.Name}} <small>v{{.Version}}</small></h1>
<div class="stats">
<span>Pack: <b id="total">-</b> V</span>
<span>Avg: <b id="avg">-</b> V</span>
<span>Diff: <b id="diff">-</b> V</span>
<span>Temp: <b id="temp">-</b> &deg;C</span>
<span>Source: <b id="can">-</b></span>
</div>
<table><thead><tr><th>Cell</th><th>Voltage</th></tr></thead><tbody id="cells"></tbody></table>
<p>
Cells: <input id="count" type="number" min="1" max="32">
<button onclick="setCells()">Set</button>
Current (A): <input id="current" type="number" step="0.1">
<button onclick="setCurrent()">Set</button>
</p>
<script>
function render(s) {
  document.getElementById("total").textContent = s.total.toFixed(2);
  document.getElementById("avg").textContent = s.avg.toFixed(3);
  document.getElementById("diff").textContent = s.diff.toFixed(3);
  document.getElementById("temp").textContent = s.temp.toFixed(1);
  document.getElementById("can").textContent = s.can ? "CAN" : "simulated";
  var rows = "";
  for (var i = 0; i < s.cells.length; i++) {
    rows += "<tr><td>" + (i + 1) + "</td><td>" + s.cells[i].toFixed(3) + "</td></tr>";
  }
  document.getElementById("cells").innerHTML = rows;
}
function refresh() { fetch("/api/status").then(r => r.json()).then(render); }
function setCells() {
  fetch("/api/cells?count=" + document.getElementById("count").value).then(r => r.json()).then(render);
}
function setCurrent() {
  fetch("/api/current?value=" + document.getElementById("current").value).then(r => r.json()).then(render);
}
var ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/ws");
ws.onmessage = function (ev) { render(JSON.parse(ev.data)); };
refresh();
</script>
</body>
</html>
`
