//go:build release

package graph

const debugAssertions = false
