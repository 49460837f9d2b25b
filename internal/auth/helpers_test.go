package auth

import "os"

func writeGarbage(path string) error {
	return os.WriteFile(path, []byte("garbage that is definitely not a sealed session"), 0o600)
}
