package masks

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/mat"
)

// Save writes a dense mask to path as a little-endian binary artifact:
// two uint32 values (rows, cols) followed by rows*cols float64 values in
// row-major order. The artifact is an ephemeral pipeline output and carries
// no version field.
func Save(path string, m *mat.Dense) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create artifact directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create artifact file: %w", err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	rows, cols := m.Dims()
	if err := binary.Write(w, binary.LittleEndian, uint32(rows)); err != nil {
		return fmt.Errorf("failed to write artifact header: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(cols)); err != nil {
		return fmt.Errorf("failed to write artifact header: %w", err)
	}

	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if err := binary.Write(w, binary.LittleEndian, m.At(r, c)); err != nil {
				return fmt.Errorf("failed to write artifact data: %w", err)
			}
		}
	}

	return w.Flush()
}

// Load reads a mask artifact previously written by Save.
func Load(path string) (*mat.Dense, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open artifact file: %w", err)
	}
	defer file.Close()

	r := bufio.NewReader(file)
	var rows, cols uint32
	if err := binary.Read(r, binary.LittleEndian, &rows); err != nil {
		return nil, fmt.Errorf("failed to read artifact header: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &cols); err != nil {
		return nil, fmt.Errorf("failed to read artifact header: %w", err)
	}
	if rows == 0 || cols == 0 {
		return nil, fmt.Errorf("artifact %s declares empty shape %dx%d", path, rows, cols)
	}

	data := make([]float64, int(rows)*int(cols))
	if err := binary.Read(r, binary.LittleEndian, data); err != nil {
		return nil, fmt.Errorf("failed to read artifact data: %w", err)
	}

	return mat.NewDense(int(rows), int(cols), data), nil
}
