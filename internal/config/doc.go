// Package config defines the packaging parameters and the optional YAML
// layout file, with helpers to normalize, validate, load and save them.
package config
