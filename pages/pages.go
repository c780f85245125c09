package pages

// ChatPage is the chat widget. It renders the session's history server side
// and talks to the JSON API for everything else.
var ChatPage = `
<!DOCTYPE html>
<html>
<head>
    <title>Persona Chat</title>
    <meta charset="utf-8">
    <style>
        body {
            font-family: Arial, sans-serif;
            line-height: 1.6;
            max-width: 800px;
            margin: 0 auto;
            padding: 20px;
        }
        #messages {
            border: 1px solid #ddd;
            border-radius: 6px;
            padding: 10px;
            min-height: 300px;
        }
        .message {
            margin: 8px 0;
            white-space: pre-wrap;
            word-wrap: break-word;
        }
        .message.user .role { color: #1a5fb4; }
        .message.assistant .role { color: #26a269; }
        .notice { padding: 6px 10px; border-radius: 4px; margin: 6px 0; }
        .notice.info { background: #e8f1fb; }
        .notice.warning { background: #fdf3d8; }
        .notice.error { background: #fbe3e4; }
        #status { color: #777; min-height: 1.6em; }
        form { display: flex; gap: 8px; margin-top: 10px; }
        #input { flex: 1; }
    </style>
</head>
<body>
    <h1>Persona Chat</h1>

    <label for="persona">Persona</label>
    <select id="persona" name="persona" data-switch-notice="{{.SwitchNotice}}">
        {{range .Personas}}<option value="{{.Name}}"{{if eq .Name $.Session.Persona}} selected{{end}}>{{.Title}}</option>
        {{end}}
    </select>
    <button id="clear" type="button">Clear Conversation</button>

    <div id="messages" data-session="{{.Session.ID}}">
        {{range .Session.Messages}}<div class="message {{.Role}}"><span class="role">{{if eq .Role "user"}}You{{else}}Bot{{end}}:</span> <span class="content">{{.Content}}</span></div>
        {{end}}
    </div>
    <div id="status"></div>

    <form id="chat">
        <input id="input" name="message" autocomplete="off" placeholder="Say something...">
        <button type="submit">Send</button>
    </form>

    <script>
    (function () {
        var messages = document.getElementById("messages");
        var status = document.getElementById("status");
        var input = document.getElementById("input");

        function post(path, body) {
            return fetch(path, {
                method: "POST",
                headers: {"Content-Type": "application/json"},
                body: JSON.stringify(body || {})
            }).then(function (res) {
                return res.json().then(function (data) {
                    if (!res.ok) { throw new Error(data.error || res.statusText); }
                    return data;
                });
            });
        }

        function addMessage(role, text) {
            var div = document.createElement("div");
            div.className = "message " + role;
            var label = document.createElement("span");
            label.className = "role";
            label.textContent = (role === "user" ? "You" : "Bot") + ": ";
            var content = document.createElement("span");
            content.className = "content";
            content.textContent = text;
            div.appendChild(label);
            div.appendChild(content);
            messages.appendChild(div);
        }

        function addNotice(level, text) {
            var div = document.createElement("div");
            div.className = "notice " + level;
            div.textContent = text;
            messages.appendChild(div);
        }

        function addAudio(audio) {
            var player = document.createElement("audio");
            player.controls = true;
            var source = document.createElement("source");
            source.src = audio.url;
            source.type = audio.format;
            player.appendChild(source);
            messages.appendChild(player);
            var caption = document.createElement("div");
            caption.textContent = audio.caption;
            messages.appendChild(caption);
        }

        document.getElementById("chat").addEventListener("submit", function (e) {
            e.preventDefault();
            var text = input.value;
            if (!text.trim()) { return; }
            input.value = "";
            addMessage("user", text);
            status.textContent = "Thinking...";
            post("/api/chat", {message: text}).then(function (turn) {
                addMessage("assistant", turn.assistant.content);
                if (turn.audio) { addAudio(turn.audio); }
                (turn.notices || []).forEach(function (n) { addNotice(n.level, n.text); });
            }).catch(function (err) {
                addNotice("error", err.message);
            }).finally(function () {
                status.textContent = "";
            });
        });

        document.getElementById("persona").addEventListener("change", function (e) {
            var notice = e.target.getAttribute("data-switch-notice");
            post("/api/session/persona", {persona: e.target.value}).then(function (view) {
                if (view.active) { addNotice("info", notice); }
            }).catch(function (err) {
                addNotice("error", err.message);
            });
        });

        document.getElementById("clear").addEventListener("click", function () {
            post("/api/session/clear").then(function () {
                messages.innerHTML = "";
            });
        });
    })();
    </script>
</body>
</html>`
