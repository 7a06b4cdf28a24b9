//go:build unix

package runner

func newPlatformProbe() PortProbe { return LsofProbe{} }
