package server

import (
	"fmt"
	"net/http"
)

// TestPageHandler serves an HTML page for trying the chat protocol by hand:
// connect with a token, pick or create a room, and chat.
func (a *App) TestPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	if _, err := fmt.Fprint(w, testPageHTML); err != nil {
		a.log.Warn("error writing HTML response", "error", err)
	}
}

const testPageHTML = `<!DOCTYPE html>
<html>
<head>
    <title>RoomChat WebSocket Test</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #layout { display: flex; gap: 20px; }
        #rooms { width: 200px; border: 1px solid #ccc; padding: 10px; }
        #rooms div { cursor: pointer; padding: 3px; }
        #rooms div.active { background-color: #d4edda; }
        #messages {
            border: 1px solid #ccc;
            height: 300px;
            width: 500px;
            padding: 10px;
            overflow-y: scroll;
            margin: 10px 0;
            background-color: #f9f9f9;
        }
        #members { font-size: 0.9em; color: #555; }
        input[type="text"] { width: 300px; padding: 5px; margin-right: 10px; }
        button { padding: 5px 15px; background-color: #007cba; color: white; border: none; cursor: pointer; }
        button:hover { background-color: #005a87; }
        .status { margin: 10px 0; padding: 5px; border-radius: 3px; }
        .connected { background-color: #d4edda; color: #155724; }
        .disconnected { background-color: #f8d7da; color: #721c24; }
    </style>
</head>
<body>
    <h1>RoomChat WebSocket Test</h1>

    <div id="status" class="status disconnected">Disconnected</div>

    <div>
        <input type="text" id="tokenInput" placeholder="Access token...">
        <button id="connectButton" onclick="toggleConnection()">Connect</button>
    </div>

    <div id="layout">
        <div id="rooms"><strong>Rooms</strong></div>
        <div>
            <div id="members"></div>
            <div id="messages"></div>
            <input type="text" id="messageInput" placeholder="Type a message..." disabled>
            <button id="sendButton" onclick="sendMessage()" disabled>Send</button>
            <div style="margin-top: 10px">
                <input type="text" id="roomInput" placeholder="New room name..." disabled>
                <button id="createButton" onclick="createRoom()" disabled>Create room</button>
            </div>
        </div>
    </div>

    <script>
        let ws = null;
        let ack = 0;
        let currentRoom = null;
        const rooms = new Map();
        const messagesDiv = document.getElementById('messages');
        const roomsDiv = document.getElementById('rooms');
        const membersDiv = document.getElementById('members');
        const messageInput = document.getElementById('messageInput');
        const roomInput = document.getElementById('roomInput');
        const statusDiv = document.getElementById('status');

        function addLine(text, color) {
            const el = document.createElement('div');
            el.style.margin = '5px 0';
            el.style.color = color || 'gray';
            el.textContent = text;
            messagesDiv.appendChild(el);
            messagesDiv.scrollTop = messagesDiv.scrollHeight;
        }

        function addChat(line) {
            const el = document.createElement('div');
            el.style.margin = '5px 0';
            const who = document.createElement('strong');
            who.style.color = line.avatarColor;
            who.textContent = line.displayName + ': ';
            el.appendChild(who);
            el.appendChild(document.createTextNode(line.message + ' (' + line.timestamp + ')'));
            messagesDiv.appendChild(el);
            messagesDiv.scrollTop = messagesDiv.scrollHeight;
        }

        function renderRooms() {
            roomsDiv.innerHTML = '<strong>Rooms</strong>';
            rooms.forEach(function(room) {
                const el = document.createElement('div');
                el.textContent = room.name;
                el.title = room.description || '';
                if (room.id === currentRoom) { el.className = 'active'; }
                el.onclick = function() { joinRoom(room.id); };
                roomsDiv.appendChild(el);
            });
        }

        function renderMembers(members) {
            membersDiv.textContent = 'Members: ' + members.map(function(m) { return m.displayName; }).join(', ');
        }

        function setConnected(connected) {
            statusDiv.textContent = connected ? 'Connected' : 'Disconnected';
            statusDiv.className = 'status ' + (connected ? 'connected' : 'disconnected');
            messageInput.disabled = !connected;
            roomInput.disabled = !connected;
            document.getElementById('sendButton').disabled = !connected;
            document.getElementById('createButton').disabled = !connected;
            document.getElementById('connectButton').textContent = connected ? 'Disconnect' : 'Connect';
        }

        function send(event, data, withAck) {
            const frame = { event: event, data: data };
            if (withAck) { frame.ack = ++ack; }
            ws.send(JSON.stringify(frame));
        }

        function handle(frame) {
            switch (frame.event) {
            case 'room-list':
                rooms.clear();
                frame.data.forEach(function(room) { rooms.set(room.id, room); });
                renderRooms();
                break;
            case 'room-created':
                rooms.set(frame.data.id, frame.data);
                renderRooms();
                break;
            case 'message-history':
                messagesDiv.innerHTML = '';
                frame.data.forEach(addChat);
                break;
            case 'chat-message':
                addChat(frame.data);
                break;
            case 'user-joined-room':
                addLine(frame.data.username + ' joined');
                renderMembers(frame.data.members);
                break;
            case 'user-left-room':
                addLine(frame.data.username + ' left');
                renderMembers(frame.data.members);
                break;
            case 'user-profile-updated':
                addLine(frame.data.username + ' is now ' + frame.data.displayName);
                break;
            case 'create-room':
                if (frame.data.error) { addLine('Create failed: ' + frame.data.error, 'red'); }
                break;
            case 'error':
                addLine('Error: ' + frame.data.error, 'red');
                break;
            }
        }

        function connect() {
            const token = encodeURIComponent(document.getElementById('tokenInput').value.trim());
            const scheme = location.protocol === 'https:' ? 'wss://' : 'ws://';
            ws = new WebSocket(scheme + location.host + '/ws?token=' + token);
            ws.onopen = function() { addLine('Connected to RoomChat server'); setConnected(true); };
            ws.onmessage = function(event) { handle(JSON.parse(event.data)); };
            ws.onclose = function() { addLine('Connection closed'); setConnected(false); ws = null; currentRoom = null; };
            ws.onerror = function() { addLine('Connection error', 'red'); };
        }

        function toggleConnection() {
            if (ws && ws.readyState === WebSocket.OPEN) { ws.close(); } else { connect(); }
        }

        function joinRoom(id) {
            currentRoom = id;
            renderRooms();
            send('join-room', { roomId: id }, false);
        }

        function createRoom() {
            const name = roomInput.value.trim();
            if (name) { send('create-room', { name: name }, true); roomInput.value = ''; }
        }

        function sendMessage() {
            const message = messageInput.value.trim();
            if (message && ws && ws.readyState === WebSocket.OPEN) {
                send('chat-message', { message: message }, false);
                messageInput.value = '';
            }
        }

        messageInput.addEventListener('keypress', function(e) {
            if (e.key === 'Enter') { sendMessage(); }
        });
    </script>
</body>
</html>`
