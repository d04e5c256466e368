package interfaces

// -----------------------------------------------------------------------------

// ISerializer defines the contract for marshaling and unmarshaling data.
// This keeps the publishers and the control plane agnostic about the actual
// wire format (JSON today, anything else tomorrow).
type ISerializer interface {
	// Marshal converts a Go object (struct) into a byte slice.
	Marshal(obj any) ([]byte, error)

	// Unmarshal converts a byte slice back into a Go object.
	Unmarshal(data []byte, obj any) error
}
