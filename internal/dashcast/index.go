// File: internal/dashcast/index.go
// Brief: Single-page dashboard shell; all record markup arrives pre-escaped over the socket.

package dashcast

const indexHTML = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>{{TITLE}}</title>
  <style>
    :root {
      color-scheme: dark;
      --bg: #1a1a2e;
      --surface: #16213e;
      --surface-soft: #0f3460;
      --border: rgba(233,69,96,0.25);
      --text: #e6e6f0;
      --muted: rgba(230,230,240,0.6);
      --accent: #e94560;
      --risk: #e94560;
      --warn: #f5a623;
      --safe: #2ecc71;
      --unknown: #8892b0;
    }
    * { box-sizing: border-box; }
    body {
      font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
      margin: 0;
      min-height: 100vh;
      padding: 40px 48px 64px;
      background: var(--bg);
      color: var(--text);
    }
    .chrome { max-width: 1400px; margin: 0 auto; }
    header { display:flex; justify-content:space-between; align-items:center; margin-bottom:28px; gap:1rem; }
    h1 { font-size:2rem; font-weight:600; letter-spacing:-0.03em; margin:0; }
    .status-chip { border-radius:999px; border:1px solid var(--border); padding:0.35rem 0.9rem; font-weight:600; }
    .layout { display:flex; gap:24px; align-items:flex-start; }
    .main-column { flex:1 1 auto; min-width:0; }
    .feed-column { width:380px; position:sticky; top:24px; }
    @media (max-width: 1000px) {
      body { padding:24px 16px 40px; }
      .layout { flex-direction:column; }
      .feed-column { width:100%; position:static; }
    }
    .panel { border-radius:20px; padding:24px; background:var(--surface); border:1px solid var(--border); }
    .view h2 { margin:0 0 1rem; }
    .radar { position:relative; height:260px; border-radius:16px; overflow:hidden; background:var(--surface-soft); }
    .radar canvas { width:100%; height:100%; display:block; }
    .radar-glyph { position:absolute; inset:0; display:flex; align-items:center; justify-content:center; font-size:3rem; }
    .hint { color:var(--muted); }
    .results { display:flex; flex-direction:column; gap:12px; }
    .error { color:var(--risk); font-weight:600; }
    .empty { color:var(--muted); }
    .fragment { display:flex; gap:12px; align-items:flex-start; padding:12px 14px; border-radius:12px; background:var(--surface-soft); border-left:4px solid var(--unknown); }
    .fragment .body { flex:1; min-width:0; }
    .fragment .title { font-weight:600; word-break:break-word; }
    .fragment .meta { color:var(--muted); font-size:0.9rem; word-break:break-word; }
    .fragment .badge { border-radius:999px; padding:0.1rem 0.6rem; font-size:0.75rem; text-transform:uppercase; border:1px solid currentColor; }
    .fragment .initial { width:28px; height:28px; border-radius:50%; display:flex; align-items:center; justify-content:center; background:rgba(255,255,255,0.08); font-weight:700; }
    .sev-risk, .sev-risky { border-left-color:var(--risk); }
    .sev-risk .badge, .sev-risky .badge { color:var(--risk); }
    .sev-warning { border-left-color:var(--warn); }
    .sev-warning .badge { color:var(--warn); }
    .sev-safe, .sev-secure { border-left-color:var(--safe); }
    .sev-safe .badge, .sev-secure .badge { color:var(--safe); }
    .sev-unknown .badge { color:var(--unknown); }
    .feed { display:flex; flex-direction:column; gap:10px; max-height:75vh; overflow:auto; }
    button#scanAgain { margin-top:20px; padding:0.6rem 1.4rem; border-radius:999px; border:none; background:var(--accent); color:#fff; font-weight:600; cursor:pointer; }
    button#scanAgain[hidden] { display:none; }
  </style>
</head>
<body>
  <div class="chrome">
    <header>
      <h1>{{TITLE}}</h1>
      <div class="status-chip" id="statusChip">Connecting…</div>
    </header>
    <div class="layout">
      <div class="main-column">
        <section class="panel">
          <div id="mainView"></div>
          <button id="scanAgain" type="button" hidden>Scan again</button>
        </section>
      </div>
      <aside class="feed-column">
        <section class="panel">
          <h2>Live activity</h2>
          <div class="feed" id="liveFeed"></div>
        </section>
      </aside>
    </div>
  </div>
<script>
(function(){
  const mainView = document.getElementById('mainView');
  const liveFeed = document.getElementById('liveFeed');
  const scanAgain = document.getElementById('scanAgain');
  const statusChip = document.getElementById('statusChip');
  let socket = null;
  let observer = null;

  function setStatus(text, color){
    statusChip.textContent = text;
    statusChip.style.color = color;
  }

  function send(obj){
    if (socket && socket.readyState === WebSocket.OPEN) {
      socket.send(JSON.stringify(obj));
    }
  }

  function watchCanvas(){
    if (observer) { observer.disconnect(); observer = null; }
    const canvas = document.getElementById('radarCanvas');
    if (!canvas || typeof ResizeObserver === 'undefined') { return; }
    observer = new ResizeObserver(function(entries){
      const rect = entries[0].contentRect;
      send({type:'resize', width:Math.round(rect.width), height:Math.round(rect.height)});
    });
    observer.observe(canvas);
  }

  function showView(view){
    if (!view) { return; }
    mainView.innerHTML = view.html;
    watchCanvas();
  }

  function setEnabled(enabled){
    scanAgain.hidden = !enabled;
  }

  function prependFeed(items){
    for (let i = items.length - 1; i >= 0; i--) {
      const item = items[i];
      if (item.id && document.getElementById('feed-' + item.id)) { continue; }
      const holder = document.createElement('div');
      holder.id = 'feed-' + item.id;
      holder.innerHTML = item.html;
      liveFeed.insertBefore(holder, liveFeed.firstChild);
    }
  }

  function drawFrame(frame){
    const canvas = document.getElementById('radarCanvas');
    if (!canvas || !frame) { return; }
    if (canvas.width !== frame.width || canvas.height !== frame.height) {
      canvas.width = frame.width;
      canvas.height = frame.height;
    }
    const ctx = canvas.getContext('2d');
    const alpha = atob(frame.alpha || '');
    const rows = Math.ceil(frame.height / frame.gap);
    const c = frame.colour;
    ctx.clearRect(0, 0, canvas.width, canvas.height);
    for (let i = 0; i < alpha.length; i++) {
      const x = Math.floor(i / rows) * frame.gap;
      const y = (i % rows) * frame.gap;
      ctx.fillStyle = 'rgba(' + c[0] + ',' + c[1] + ',' + c[2] + ',' + (alpha.charCodeAt(i) / 255) + ')';
      ctx.fillRect(x, y, frame.size, frame.size);
    }
  }

  function handle(msg){
    switch (msg.type) {
      case 'snapshot':
        liveFeed.innerHTML = '';
        showView(msg.view);
        setEnabled(!!msg.enabled);
        prependFeed(msg.feed || []);
        break;
      case 'view':
        showView(msg.view);
        break;
      case 'control':
        setEnabled(!!msg.enabled);
        break;
      case 'frame':
        drawFrame(msg.frame);
        break;
      case 'feed':
        prependFeed(msg.feed || []);
        break;
    }
  }

  scanAgain.addEventListener('click', function(){
    setEnabled(false);
    send({type:'scan'});
  });

  function connect(){
    const proto = location.protocol === 'https:' ? 'wss' : 'ws';
    const ws = new WebSocket(proto + '://' + location.host + '/ws');
    socket = ws;
    let reconnect = true;
    ws.onopen = function(){ setStatus('Live', '#2ecc71'); watchCanvas(); };
    ws.onerror = function(){ setStatus('Error', '#e94560'); };
    ws.onclose = function(){
      if (reconnect) {
        setStatus('Reconnecting…', '#f5a623');
        setTimeout(connect, 1200);
      } else {
        setStatus('Closed', '#8892b0');
      }
    };
    ws.onmessage = function(ev){
      try {
        handle(JSON.parse(ev.data));
      } catch(err) {
        console.error('dashboard message error', err);
      }
    };
    window.addEventListener('beforeunload', function(){
      reconnect = false;
      ws.close();
    });
  }

  connect();
})();
</script>
</body>
</html>`
