//go:build !unix

package executor

func isCrossDevice(err error) bool {
	return false
}
