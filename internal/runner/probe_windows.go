//go:build windows

package runner

func newPlatformProbe() PortProbe { return unsupportedProbe{} }
