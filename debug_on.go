//go:build debug

package dieseltri

const debugBuild = true
