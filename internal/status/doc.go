// Package status republishes device state onto the dashboard page.
//
// A [Poller] reads the device's bulb, status and system-info endpoints,
// maps each reply onto page elements through the view package, and keeps
// a merged [Snapshot] of the latest values. It also drives the LED control
// action and reports its outcome with a notification.
//
// Background refreshes never notify the user: a failed read is logged and
// the page keeps its previous content. Only a control action surfaces
// errors, as "Operation failed" when the device refuses and "Network error"
// when the reply never arrives or cannot be read.
package status
