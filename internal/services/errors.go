package services

import "fmt"

// Service errors
var (
	ErrEmptyTranscript     = &ServiceError{Message: "say something first"}
	ErrEmptyImportFile     = &ServiceError{Message: "import file is empty"}
	ErrInvalidImportType   = &ServiceError{Message: "import file must be an .xlsx or .xls spreadsheet"}
	ErrNameRequired        = &ServiceError{Message: "participant name is required"}
	ErrPrizeNameRequired   = &ServiceError{Message: "prize name is required"}
	ErrInvalidPrizeLevel   = &ServiceError{Message: "prize level must be a positive number"}
	ErrInvalidPrizeCount   = &ServiceError{Message: "prize count must be a positive number"}
	ErrIDRequired          = &ServiceError{Message: "id is required"}
	ErrNoTablesSpecified   = &ServiceError{Message: "no tables specified"}
	ErrNoParticipantsGiven = &ServiceError{Message: "no participant ids given"}
)

// ServiceError represents a service-level validation error
type ServiceError struct {
	Message string
}

func (e *ServiceError) Error() string {
	return e.Message
}

// InvalidTableError represents an invalid table name error
type InvalidTableError struct {
	Table string
}

func (e *InvalidTableError) Error() string {
	return fmt.Sprintf("invalid table name: %s", e.Table)
}
