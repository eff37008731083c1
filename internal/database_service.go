package internal

// Database is a sink for log records; the storage backend implements it when it can.
type Database interface {
	WriteLogMessage(data Data) error
}

type Data interface {
	DataType() string
}
