package server

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

// WebSocketHandler upgrades the request and hands the new client to the hub,
// which launches its pumps. Origin checks happen inside the upgrade.
func (s *Server) WebSocketHandler(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", slog.Any("error", err))
		return
	}

	client := NewClient(conn, s.hub, c.Request.RemoteAddr)
	s.logger.Debug("WebSocket upgraded", slog.String("connID", client.ID()), slog.String("addr", c.Request.RemoteAddr))
	s.hub.Register(client)
}

// HealthHandler reports that the server is up along with the number of joined users.
func (s *Server) HealthHandler(c *gin.Context) {
	c.String(http.StatusOK, "roomchat server is running! users=%d connections=%d",
		s.registry.Count(), s.hub.ClientCount())
}

// RoomsHandler lists the active rooms with their member counts.
func (s *Server) RoomsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rooms": s.registry.Rooms()})
}

// TestPageHandler serves a minimal HTML client for trying the relay by hand.
func TestPageHandler(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(testPage))
}

const testPage = `<!DOCTYPE html>
<html>
<head>
    <title>roomchat test client</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #messages { border: 1px solid #ccc; height: 300px; padding: 10px; overflow-y: scroll; margin: 10px 0; background-color: #f9f9f9; }
        #roster { color: #555; margin: 10px 0; }
        input[type="text"] { padding: 5px; margin-right: 10px; }
        .error { color: #721c24; }
    </style>
</head>
<body>
    <h1>roomchat</h1>
    <div>
        <input type="text" id="username" placeholder="Username">
        <input type="text" id="room" placeholder="Room">
        <button onclick="join()">Join</button>
    </div>
    <div id="roster"></div>
    <div id="messages"></div>
    <div>
        <input type="text" id="message" placeholder="Type a message...">
        <button onclick="sendMessage()">Send</button>
        <button onclick="sendLocation()">Send location</button>
    </div>

    <script>
        const messagesDiv = document.getElementById('messages');
        const rosterDiv = document.getElementById('roster');
        const pending = {};
        let nextAck = 1;
        const scheme = location.protocol === 'https:' ? 'wss://' : 'ws://';
        const ws = new WebSocket(scheme + location.host + '/ws');

        function show(text, cls) {
            const el = document.createElement('div');
            if (cls) el.className = cls;
            el.textContent = text;
            messagesDiv.appendChild(el);
            messagesDiv.scrollTop = messagesDiv.scrollHeight;
        }

        function emit(event, payload, cb) {
            const ack = nextAck++;
            pending[ack] = cb || function () {};
            ws.send(JSON.stringify({ event: event, payload: payload, ack: ack }));
        }

        function reportError(result) {
            if (result && result.error) show(result.error, 'error');
        }

        ws.onmessage = function (e) {
            const frame = JSON.parse(e.data);
            const p = frame.payload || {};
            const time = p.createdAt ? new Date(p.createdAt).toLocaleTimeString() : '';
            switch (frame.event) {
            case 'ack':
                if (pending[frame.ack]) { pending[frame.ack](frame.payload); delete pending[frame.ack]; }
                break;
            case 'message':
                show(time + ' ' + p.username + ': ' + p.text);
                break;
            case 'locationMessage':
                show(time + ' ' + p.username + ' shared a location: ' + p.url);
                break;
            case 'roomData':
                rosterDiv.textContent = p.room + ': ' + p.users.join(', ');
                break;
            }
        };
        ws.onclose = function () { show('Connection closed', 'error'); };

        function join() {
            emit('join', {
                username: document.getElementById('username').value,
                room: document.getElementById('room').value
            }, reportError);
        }

        function sendMessage() {
            const input = document.getElementById('message');
            emit('sendMessage', { message: input.value }, function (result) {
                reportError(result);
                if (!result) input.value = '';
            });
        }

        function sendLocation() {
            if (!navigator.geolocation) return show('Geolocation is not supported', 'error');
            navigator.geolocation.getCurrentPosition(function (pos) {
                emit('sendLocation', { lat: pos.coords.latitude, lng: pos.coords.longitude }, reportError);
            });
        }
    </script>
</body>
</html>`
