package export

import (
	"fmt"
	"io"
	"os"

	"github.com/pierrec/lz4/v4"

	"github.com/Sumatoshi-tech/gitport/pkg/persist"
)

// compressFile writes an lz4-compressed copy of src next to the plain
// JSON contract file.
func compressFile(src, dest string) error {
	in, openErr := os.Open(src)
	if openErr != nil {
		return fmt.Errorf("open %s: %w", src, openErr)
	}
	defer in.Close()

	return persist.AtomicWrite(dest, func(w io.Writer) error {
		zw := lz4.NewWriter(w)

		_, copyErr := io.Copy(zw, in)
		if copyErr != nil {
			return fmt.Errorf("compress %s: %w", src, copyErr)
		}

		return zw.Close()
	})
}
