//go:build !unix && !(windows && (amd64 || arm64))

package trash

func homeTrashDir() (string, error) {
	return "", ErrUnsupported
}

func (t *Trash) move(abs string) error {
	return ErrUnsupported
}

func (t *Trash) Restore(name string) (string, error) {
	return "", ErrUnsupported
}
