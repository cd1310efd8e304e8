//go:build windows

package payment

import (
	"errors"
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/windows"
)

type dllTerminal struct {
	check    *windows.LazyProc
	purchase *windows.LazyProc
}

func openTerminal(dllPath string) (Terminal, error) {
	if _, err := os.Stat(dllPath); err != nil {
		return nil, fmt.Errorf("EFTPOS DLL not found at: %s", dllPath)
	}
	dll := windows.NewLazyDLL(dllPath)
	if err := dll.Load(); err != nil {
		return nil, fmt.Errorf("load EFTPOS DLL: %w", err)
	}
	t := &dllTerminal{
		check:    dll.NewProc("API_CheckConnection"),
		purchase: dll.NewProc("API_PerformPurchase"),
	}
	for _, proc := range []*windows.LazyProc{t.check, t.purchase} {
		if err := proc.Find(); err != nil {
			return nil, fmt.Errorf("EFTPOS DLL: %w", err)
		}
	}
	return t, nil
}

func (t *dllTerminal) CheckConnection(comPort string, timeoutSec int, charset string) (string, error) {
	com, err := windows.BytePtrFromString(comPort)
	if err != nil {
		return "", err
	}
	cs, err := windows.BytePtrFromString(charset)
	if err != nil {
		return "", err
	}
	r, _, _ := t.check.Call(uintptr(unsafe.Pointer(com)), uintptr(timeoutSec), uintptr(unsafe.Pointer(cs)))
	return wideResult(r)
}

func (t *dllTerminal) PerformPurchase(amountHalalah int64, comPort string, timeoutSec int, charset string) (string, error) {
	com, err := windows.BytePtrFromString(comPort)
	if err != nil {
		return "", err
	}
	cs, err := windows.BytePtrFromString(charset)
	if err != nil {
		return "", err
	}
	r, _, _ := t.purchase.Call(uintptr(unsafe.Pointer(com)), uintptr(timeoutSec), uintptr(amountHalalah), uintptr(unsafe.Pointer(cs)))
	return wideResult(r)
}

// wideResult copies the wchar_t* returned by the DLL.
func wideResult(r uintptr) (string, error) {
	if r == 0 {
		return "", errors.New("EFTPOS DLL returned no response")
	}
	return windows.UTF16PtrToString((*uint16)(unsafe.Pointer(r))), nil
}
