//go:build !windows

package payment

import "photobooth/internal/domain"

func openTerminal(string) (Terminal, error) {
	return nil, &domain.Error{Kind: domain.ErrUnsupportedPlatform, Detail: "EFTPOS DLL is only supported on Windows"}
}
