package authserver

import (
	"bytes"
	"html/template"
)

// editorRedirectDelayMS is how long the success page waits before jumping
// back into the editor.
const editorRedirectDelayMS = 1000

var successPage = template.Must(template.New("success").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>Authentication Successful</title>
  <style>
    body {
      font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
      background: linear-gradient(135deg, #667eea 0%, #764ba2 100%);
      min-height: 100vh;
      margin: 0;
      display: flex;
      align-items: center;
      justify-content: center;
      color: white;
    }
    .container {
      text-align: center;
      background: rgba(255, 255, 255, 0.1);
      border-radius: 20px;
      padding: 60px 40px;
      max-width: 500px;
      width: 90%;
    }
    .success-icon {
      width: 80px;
      height: 80px;
      margin: 0 auto 30px;
      background: #4CAF50;
      border-radius: 50%;
      line-height: 80px;
      font-size: 40px;
      font-weight: bold;
    }
    .footer { font-size: 14px; opacity: 0.7; }
  </style>
</head>
<body>
  <div class="container">
    <div class="success-icon">&#10003;</div>
    <h1>Authentication Successful!</h1>
    <p class="message">
      Your authentication has been completed successfully.<br>
      {{if .RedirectURL}}Opening file in your editor...{{else}}You can now return to your editor to continue your work.{{end}}
    </p>
    <p class="footer">You can close this tab manually</p>
  </div>
{{if .RedirectURL}}
  <script>
    setTimeout(function () {
      window.location.href = {{.RedirectURL}};
    }, {{.DelayMS}});
  </script>
{{end}}
</body>
</html>
`))

type successPageData struct {
	RedirectURL string
	DelayMS     int
}

// editorURL returns the link that opens currentPath in the editor, or ""
// when either part is missing.
func editorURL(scheme, currentPath string) string {
	if scheme == "" || currentPath == "" {
		return ""
	}
	return scheme + "://file/" + currentPath
}

func renderSuccessPage(scheme, currentPath string) ([]byte, error) {
	var buf bytes.Buffer
	err := successPage.Execute(&buf, successPageData{
		RedirectURL: editorURL(scheme, currentPath),
		DelayMS:     editorRedirectDelayMS,
	})
	return buf.Bytes(), err
}
