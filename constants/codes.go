package constants

// ErrorCode is the file-system error taxonomy used by hashing and archiving.
type ErrorCode string

const (
	FileNotFound           ErrorCode = "FILE_NOT_FOUND"
	FilePermissionDenied   ErrorCode = "FILE_PERMISSION_DENIED"
	FileLocked             ErrorCode = "FILE_LOCKED"
	FileExists             ErrorCode = "FILE_EXISTS"
	FileCorrupted          ErrorCode = "FILE_CORRUPTED"
	FileUnreadable         ErrorCode = "FILE_UNREADABLE"
	FileAccess             ErrorCode = "FILE_ACCESS"
	MemoryInsufficient     ErrorCode = "MEMORY_INSUFFICIENT"
	DiskSpaceFull          ErrorCode = "DISK_SPACE_FULL"
	FolderPermissionDenied ErrorCode = "FOLDER_PERMISSION_DENIED"
	FolderNotWritable      ErrorCode = "FOLDER_NOT_WRITABLE"
	FolderCreationFailed   ErrorCode = "FOLDER_CREATION_FAILED"
	InvalidPath            ErrorCode = "INVALID_PATH"
	DiskIOError            ErrorCode = "DISK_IO_ERROR"

	// Not part of the file-system taxonomy proper; used by config and ledger bootstrapping.
	ConfigInvalid ErrorCode = "CONFIG_INVALID"
	LedgerInvalid ErrorCode = "LEDGER_INVALID"
)

// ExtractionCode is the extraction-outcome taxonomy. It only ever appears in ledger rows.
type ExtractionCode string

const (
	ExtractionAPI     ExtractionCode = "ERROR-API"
	ExtractionFile    ExtractionCode = "ERROR-FILE"
	ExtractionParse   ExtractionCode = "ERROR-PARSE"
	ExtractionUnknown ExtractionCode = "ERROR-UNKNOWN"
)

// AllExtractionCodes lists the codes in a stable order.
var AllExtractionCodes = []ExtractionCode{
	ExtractionAPI,
	ExtractionFile,
	ExtractionParse,
	ExtractionUnknown,
}

// IsExtractionCode reports whether s is one of the ERROR-* codes.
func IsExtractionCode(s string) bool {
	for _, c := range AllExtractionCodes {
		if string(c) == s {
			return true
		}
	}
	return false
}
