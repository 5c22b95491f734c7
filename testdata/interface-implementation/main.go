// Package main checks that interface calls only reach the implementations
// whose objects flow into the receiver.
package main

// Writer interface defines a write method
type Writer interface {
	Write(data []byte) error
}

// FileWriter implements Writer
type FileWriter struct {
	filename string
}

// Write is reached through ProcessData with a *FileWriter receiver.
func (fw *FileWriter) Write(data []byte) error {
	return nil
}

// Close is never called, so no receiver reaches it.
func (fw *FileWriter) Close() error {
	return nil
}

// BufferWriter implements Writer
type BufferWriter struct {
	buffer []byte
}

// Write is reached through ProcessData with a *BufferWriter receiver.
func (bw *BufferWriter) Write(data []byte) error {
	bw.buffer = append(bw.buffer, data...)
	return nil
}

// Flush is never called.
func (bw *BufferWriter) Flush() error {
	bw.buffer = bw.buffer[:0]
	return nil
}

// NullWriter implements Writer but is never allocated.
type NullWriter struct{}

func (NullWriter) Write(data []byte) error { return nil }

// ProcessData receives both writers.
func ProcessData(w Writer, data []byte) error {
	return w.Write(data)
}

// Example usage
func Example() {
	fw := &FileWriter{filename: "test.txt"}
	bw := &BufferWriter{}

	data := []byte("test data")

	ProcessData(fw, data)
	ProcessData(bw, data)
}

func main() {
	Example()
}
