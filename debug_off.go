//go:build !debug

package dieseltri

const debugBuild = false
