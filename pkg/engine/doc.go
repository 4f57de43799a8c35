// Package engine executes completed fragments. It bridges the fragment
// stream to sandbox provisioning: create a sandbox from the fragment's
// template, install any extra dependencies, place the code, and produce
// either captured interpreter output or a preview URL.
package engine
