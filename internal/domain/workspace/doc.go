// Package workspace manages playground sessions. A Workspace ties a source
// bundle to the preview host that runs it; the Manager creates workspaces
// from the template catalog and tears them down.
package workspace
