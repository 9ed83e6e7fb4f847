//go:build windows && (amd64 || arm64)

package trash

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

var procSHFileOperationW = windows.NewLazySystemDLL("shell32.dll").NewProc("SHFileOperationW")

const (
	foDelete = 0x3

	fofSilent         = 0x4
	fofNoConfirmation = 0x10
	fofAllowUndo      = 0x40
	fofNoErrorUI      = 0x400
)

// shFileOpStruct mirrors SHFILEOPSTRUCTW. The 64-bit headers use natural
// alignment, which matches Go's layout; the 32-bit ones are packed.
type shFileOpStruct struct {
	hwnd                  uintptr
	wFunc                 uint32
	pFrom                 *uint16
	pTo                   *uint16
	fFlags                uint16
	fAnyOperationsAborted int32
	hNameMappings         uintptr
	lpszProgressTitle     *uint16
}

// The Recycle Bin lives per volume and is owned by the shell, so there is
// no single directory to report.
func homeTrashDir() (string, error) {
	return "", nil
}

// move sends abs to the Recycle Bin with the shell's undo support.
func (t *Trash) move(abs string) error {
	from, err := windows.UTF16FromString(abs)
	if err != nil {
		return err
	}
	// pFrom is a list of names terminated by an extra NUL.
	from = append(from, 0)

	op := shFileOpStruct{
		wFunc:  foDelete,
		pFrom:  &from[0],
		fFlags: fofAllowUndo | fofNoConfirmation | fofSilent | fofNoErrorUI,
	}
	if err := procSHFileOperationW.Find(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	r, _, _ := procSHFileOperationW.Call(uintptr(unsafe.Pointer(&op)))
	if r != 0 {
		return fmt.Errorf("SHFileOperationW failed with code 0x%x", r)
	}
	if op.fAnyOperationsAborted != 0 {
		return fmt.Errorf("recycling aborted")
	}
	return nil
}

// Restore is not available for the Recycle Bin; items are restored from
// Explorer.
func (t *Trash) Restore(name string) (string, error) {
	return "", ErrUnsupported
}
