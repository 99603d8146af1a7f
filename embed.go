package audio2text

import "embed"

// WebFiles holds the operator console: index.html and static/.
//
//go:embed web
var WebFiles embed.FS
