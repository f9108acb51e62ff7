package channels

var loginHTML = loginPage("")

var loginErrorHTML = loginPage("Invalid username or password")

func loginPage(errMsg string) string {
	errBlock := ""
	if errMsg != "" {
		errBlock = `<div class="login-error">` + errMsg + `</div>`
	}
	return `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width,initial-scale=1">
<title>HaggleKit - Login</title>
<style>
:root{
  --bg:#10141c;--panel:#171c27;--border:#2a3040;--accent:#2dd4a7;
  --accent-dark:#1fae8a;--text:#e6e9f0;--muted:#8a91a2;--error:#f87171;
}
*{box-sizing:border-box;margin:0;padding:0}
html,body{height:100%}
body{
  font-family:system-ui,-apple-system,sans-serif;
  background:var(--bg);color:var(--text);
  display:flex;align-items:center;justify-content:center;
}
.login-card{
  width:100%;max-width:360px;padding:36px 28px;
  background:var(--panel);border:1px solid var(--border);border-radius:14px;
}
.login-card h1{font-size:20px;font-weight:600;text-align:center;margin-bottom:4px}
.login-card .sub{font-size:13px;color:var(--muted);text-align:center;margin-bottom:24px}
.login-error{
  padding:10px 14px;margin-bottom:18px;
  background:rgba(248,113,113,.08);border:1px solid rgba(248,113,113,.25);
  border-radius:8px;font-size:13px;color:var(--error);
}
.field{margin-bottom:14px}
.field label{display:block;font-size:13px;color:var(--muted);margin-bottom:6px}
.field input{
  width:100%;padding:10px 13px;background:var(--bg);
  border:1px solid var(--border);border-radius:8px;
  color:var(--text);font-size:14px;font-family:inherit;outline:none;
}
.field input:focus{border-color:var(--accent)}
.login-btn{
  width:100%;padding:11px;margin-top:6px;
  background:var(--accent);color:#0a0f16;border:none;border-radius:9px;
  font-size:14px;font-weight:600;font-family:inherit;cursor:pointer;
}
.login-btn:hover{background:var(--accent-dark)}
</style>
</head>
<body>
<form class="login-card" method="POST" action="/login">
  <h1>HaggleKit</h1>
  <p class="sub">Sign in to your negotiation assistant</p>
  ` + errBlock + `
  <div class="field"><label for="username">Username</label><input id="username" name="username" type="text" autocomplete="username" required autofocus></div>
  <div class="field"><label for="password">Password</label><input id="password" name="password" type="password" autocomplete="current-password" required></div>
  <button class="login-btn" type="submit">Sign in</button>
</form>
</body>
</html>`
}

var chatHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width,initial-scale=1">
<title>HaggleKit</title>
<style>
:root{
  --bg:#10141c;--panel:#171c27;--panel2:#1d2330;--border:#2a3040;
  --accent:#2dd4a7;--accent-dark:#1fae8a;--text:#e6e9f0;--muted:#8a91a2;
  --user-bg:linear-gradient(135deg,#2dd4a7,#22b3d4);--error:#f87171;
}
*{box-sizing:border-box;margin:0;padding:0}
html,body{height:100%}
body{
  font-family:system-ui,-apple-system,sans-serif;
  background:var(--bg);color:var(--text);
  display:flex;flex-direction:column;overflow:hidden;
}
#header{
  padding:14px 22px;background:var(--panel);border-bottom:1px solid var(--border);
  display:flex;align-items:center;gap:12px;flex-shrink:0;
}
#header h1{font-size:16px;font-weight:600}
#header .subtitle{font-size:12px;color:var(--muted)}
.header-right{margin-left:auto;display:flex;align-items:center;gap:10px}
.logout-btn{
  background:none;border:1px solid var(--border);border-radius:8px;
  color:var(--muted);padding:6px 12px;font-size:12px;font-family:inherit;
  cursor:pointer;text-decoration:none;
}
.logout-btn:hover{color:var(--text)}
#notices{position:fixed;top:16px;right:16px;display:flex;flex-direction:column;gap:8px;z-index:10}
.notice{
  padding:10px 16px;background:var(--panel2);border:1px solid rgba(248,113,113,.4);
  border-radius:9px;font-size:13px;color:var(--error);max-width:320px;
}
#messages{
  flex:1;overflow-y:auto;padding:22px;
  display:flex;flex-direction:column;gap:14px;
}
.msg-row{display:flex}
.msg-row.user{justify-content:flex-end}
.msg-bubble{
  max-width:72%;padding:11px 15px;border-radius:14px;
  line-height:1.6;font-size:14px;white-space:pre-wrap;word-wrap:break-word;
}
.msg-row.user .msg-bubble{background:var(--user-bg);color:#0a0f16;border-bottom-right-radius:5px}
.msg-row.assistant .msg-bubble{
  background:var(--panel2);border:1px solid var(--border);border-bottom-left-radius:5px;
}
#input-area{
  padding:14px 22px 18px;background:var(--panel);
  border-top:1px solid var(--border);flex-shrink:0;
}
.input-wrapper{
  display:flex;align-items:flex-end;gap:8px;
  background:var(--bg);border:1px solid var(--border);
  border-radius:12px;padding:4px 4px 4px 14px;
}
.input-wrapper:focus-within{border-color:var(--accent)}
#input{
  flex:1;padding:9px 0;border:none;font-size:14px;background:transparent;
  color:var(--text);outline:none;resize:none;max-height:120px;font-family:inherit;
}
.icon-btn{
  width:38px;height:38px;border:none;border-radius:9px;cursor:pointer;
  display:flex;align-items:center;justify-content:center;flex-shrink:0;
  background:var(--panel2);color:var(--muted);font-size:16px;
}
.icon-btn:hover{color:var(--text)}
#send{background:var(--accent);color:#0a0f16}
#send:hover{background:var(--accent-dark)}
#send:disabled{opacity:.35;cursor:not-allowed}
.hint{font-size:11px;color:var(--muted);text-align:center;margin-top:8px}
</style>
</head>
<body>
<div id="header">
  <div><h1>HaggleKit</h1><span class="subtitle">Negotiation assistant</span></div>
  <div class="header-right"><a href="/logout" class="logout-btn">Sign out</a></div>
</div>
<div id="notices"></div>
<div id="messages"></div>
<div id="input-area">
  <div class="input-wrapper">
    <textarea id="input" rows="1" placeholder="Type your reply to the seller..."></textarea>
    <button id="upload" class="icon-btn" title="Analyze a screenshot">&#128247;</button>
    <button id="send" class="icon-btn" title="Send">&#10148;</button>
  </div>
  <div class="hint">Enter to send &middot; Shift+Enter for a new line &middot; camera to analyze a screenshot</div>
  <input type="file" id="file" accept="image/*" style="display:none">
</div>
<script>
const msgsEl=document.getElementById("messages"),
      input=document.getElementById("input"),
      sendBtn=document.getElementById("send"),
      uploadBtn=document.getElementById("upload"),
      fileEl=document.getElementById("file"),
      noticesEl=document.getElementById("notices"),
      sessionID="default";
let busy=false;
function esc(s){return s.replace(/&/g,"&amp;").replace(/</g,"&lt;").replace(/>/g,"&gt;")}
function addMsg(role,content){
  const row=document.createElement("div");row.className="msg-row "+role;
  const bubble=document.createElement("div");bubble.className="msg-bubble";
  bubble.innerHTML=esc(content);
  row.appendChild(bubble);
  msgsEl.appendChild(row);msgsEl.scrollTop=msgsEl.scrollHeight;
}
function notice(text){
  const el=document.createElement("div");el.className="notice";el.textContent=text;
  noticesEl.appendChild(el);
  setTimeout(()=>el.remove(),6000);
}
async function loadHistory(){
  try{
    const r=await fetch("/chat/history?session_id="+sessionID);
    if(r.status===401){window.location.href="/login";return}
    const d=await r.json();
    (d.messages||[]).forEach(m=>addMsg(m.author==="assistant"?"assistant":"user",m.text));
  }catch(e){}
}
async function send(){
  const m=input.value.trim();if(!m||busy)return;
  busy=true;sendBtn.disabled=true;input.value="";
  addMsg("user",m);
  try{
    const r=await fetch("/chat/send",{method:"POST",headers:{"Content-Type":"application/json"},body:JSON.stringify({session_id:sessionID,message:m})});
    if(r.status===401){window.location.href="/login";return}
    const d=await r.json();
    if(!r.ok){notice(d.error||r.statusText)}
    else addMsg("assistant",d.message.text);
  }catch(e){notice("Sending failed: "+e.message)}
  busy=false;sendBtn.disabled=false;input.focus();
}
async function analyze(file){
  if(busy)return;
  busy=true;sendBtn.disabled=true;
  addMsg("user","[screenshot: "+file.name+"]");
  const form=new FormData();
  form.append("session_id",sessionID);
  form.append("file",file);
  try{
    const r=await fetch("/analyze",{method:"POST",body:form});
    if(r.status===401){window.location.href="/login";return}
    const d=await r.json();
    if(!r.ok){notice(d.error||r.statusText)}
    else addMsg("assistant",d.suggested_response);
  }catch(e){notice("Analysis failed: "+e.message)}
  busy=false;sendBtn.disabled=false;
}
function connectWs(){
  const proto=location.protocol==="https:"?"wss":"ws";
  const ws=new WebSocket(proto+"://"+location.host+"/ws");
  ws.onopen=()=>ws.send(JSON.stringify({action:"subscribe",session_id:sessionID}));
  ws.onmessage=ev=>{
    const d=JSON.parse(ev.data);
    if(d.type==="notice")notice(d.payload);
  };
  ws.onclose=()=>setTimeout(connectWs,3000);
}
sendBtn.onclick=send;
uploadBtn.onclick=()=>fileEl.click();
fileEl.onchange=()=>{if(fileEl.files.length)analyze(fileEl.files[0]);fileEl.value=""};
input.onkeydown=e=>{if(e.key==="Enter"&&!e.shiftKey){e.preventDefault();send()}};
loadHistory();connectWs();input.focus();
</script>
</body>
</html>`
