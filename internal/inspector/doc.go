// Package inspector is a development aid for the public site.
//
// In dev mode the site layout loads /__inspector/inspector.js. The script
// reports every element carrying a data-component attribute, outlines the
// element under the pointer, and on alt-click copies a plain text description
// of it (component, template, props) to the clipboard.
//
// Registries are scoped to a browser through the darkroom_inspector cookie and
// live only in memory. An Inspector owns all of them; nothing is global.
package inspector
