package demo

import "html/template"

const layoutCSS = `
<style>
body { font-family: sans-serif; margin: 0; display: flex; min-height: 100vh; }
aside { width: 300px; padding: 16px; background: #f3f3f5; box-sizing: border-box; }
main { flex: 1; padding: 16px; }
aside form { margin-bottom: 24px; }
aside label { display: block; margin-top: 8px; font-size: 14px; }
aside input[type=text] { width: 100%; box-sizing: border-box; }
.frames { display: grid; grid-template-columns: repeat(4, 1fr); gap: 12px; }
.frame img { max-width: 100%; border: 1px solid #ccc; }
.frame .empty { height: 160px; border: 1px dashed #bbb; background: #fafafa; }
.message { padding: 8px 12px; background: #fff3cd; border: 1px solid #e0c36c; margin-bottom: 12px; }
table { border-collapse: collapse; margin-top: 16px; font-size: 13px; }
td, th { border: 1px solid #ddd; padding: 4px 8px; }
</style>
`

const loginHTML = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Depth Demo</title>` + layoutCSS + `</head>
<body>
<main>
  <h2>Depth Demo</h2>
  {{if .Message}}<div class="message">{{.Message}}</div>{{end}}
  <form method="post" action="/login">
    <label>Password <input type="password" name="password" autofocus></label>
    <button type="submit">Enter</button>
  </form>
</main>
</body>
</html>`

const indexHTML = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Depth Demo</title>` + layoutCSS + `</head>
<body>
<aside>
  <form method="post" action="/images" enctype="multipart/form-data">
    <label>Image Set
      <select name="image_set">
        {{range .ImageSets}}<option value="{{.}}"{{if eq . $.SelectedSet}} selected{{end}}>{{.}}</option>{{end}}
      </select>
    </label>
    {{if eq .SelectedSet .CustomSet}}
    <label>Primary Image <input type="file" name="primary" accept="image/*"></label>
    <label>Depth Image <input type="file" name="depth" accept="image/*"></label>
    <label>EV Minus Image (Optional) <input type="file" name="ev" accept="image/*"></label>
    {{end}}
    <button type="submit">Load</button>
  </form>

  <form method="post" action="/submit">
    <label>Brightness {{.Brightness}}
      <input type="range" name="brightness" min="0" max="{{.MaxBrightness}}" value="{{.Brightness}}">
    </label>
    <fieldset>
      <legend>EV Image</legend>
      <label><input type="radio" name="ev" value="Yes"{{if ne .Params.EVChoice "No"}} checked{{end}}> Yes</label>
      <label><input type="radio" name="ev" value="No"{{if eq .Params.EVChoice "No"}} checked{{end}}> No</label>
    </fieldset>
    <label>Focus Coordinates <input type="text" name="focus_coordinates" value="{{.Params.FocusCoordinates}}"></label>
    <label>Lens Simulation <input type="text" name="lens_simulation" value="{{.Params.LensSimulation}}"></label>
    <label>Depth of Field <input type="text" name="depth_of_field" value="{{.Params.DepthOfField}}"></label>
    <label>FStop <input type="text" name="fstop" value="{{.Params.FStop}}"></label>
    <label>Image Format <input type="text" name="image_format" value="{{.Params.ImageFormat}}"></label>
    <label>Depth Format <input type="text" name="depth_format" value="{{.Params.DepthFormat}}"></label>
    <button type="submit">Submit</button>
  </form>

  <form method="post" action="/logout"><button type="submit">Log out</button></form>
</aside>
<main>
  {{if .Message}}<div class="message">{{.Message}}</div>{{end}}
  <div class="frames">
    {{range .Frames}}
    <div class="frame">
      <h4>{{.Title}}</h4>
      {{if .Src}}<img src="{{.Src}}" alt="{{.Title}}">{{else}}<div class="empty"></div>{{end}}
    </div>
    {{end}}
  </div>
  {{if .Rendered}}
  <p>
    <a href="{{.DownloadURL}}" download="{{.DownloadName}}">Download Rendered Image</a>
    {{if .Recorded}} · saved as test_{{.SequenceNumber}}{{end}}
  </p>
  {{end}}
  {{if .Metadata}}
  <table>
    <tr><th>Image</th><th>Name</th><th>Format</th><th>Size</th><th>Bytes</th><th>Camera</th><th>Lens</th><th>Taken</th><th>f</th><th>Focal</th></tr>
    {{range .Metadata}}
    <tr>
      <td>{{.Role}}</td><td>{{.Name}}</td><td>{{.Format}}</td><td>{{.Width}}×{{.Height}}</td><td>{{.FileSize}}</td>
      <td>{{.CameraMake}} {{.CameraModel}}</td><td>{{.LensModel}}</td><td>{{.TakenAt}}</td><td>{{.FNumber}}</td><td>{{.FocalLength}}</td>
    </tr>
    {{end}}
  </table>
  {{end}}
</main>
</body>
</html>`

// parseTemplates 解析页面模板
func parseTemplates() (*template.Template, error) {
	tmpl := template.New("demo")
	if _, err := tmpl.New("login.html").Parse(loginHTML); err != nil {
		return nil, err
	}
	if _, err := tmpl.New("index.html").Parse(indexHTML); err != nil {
		return nil, err
	}
	return tmpl, nil
}
