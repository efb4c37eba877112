// Package studio holds the episode workflow: an immutable State advanced by a
// pure Reduce function, a Studio controller that runs generation in the
// background and fans updates out to subscribers, and a Manager that owns the
// live studios and expires idle ones.
package studio
