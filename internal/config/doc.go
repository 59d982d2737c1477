// Package config holds the newsharvest run configuration: defaults, the
// optional .newsharvest YAML file, XDG directories and the providers that
// supply search inputs (static values or a work item payload).
package config
