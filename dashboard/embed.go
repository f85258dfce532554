// Package dashboard provides the embedded web UI assets for LEDBoard.
//
// The page markup doubles as the binding contract between the device logic
// and the browser: element ids such as bulb, ledState or sidebar are looked
// up by the server-side document model. A custom page may replace it as
// long as it keeps the ids it wants updated.
package dashboard

import "embed"

// Assets is an embedded filesystem containing the dashboard web UI.
//
// The filesystem structure is:
//
//	assets/
//	  index.html    - Dashboard page with inline CSS and the patch client
//
//go:embed assets/*
var Assets embed.FS

// PagePath is the location of the default page inside [Assets].
const PagePath = "assets/index.html"
