package errors

// ErrorCode represents a unique error identifier
type ErrorCode int

// Error code ranges allocation:
// 10000-10999: System & Common errors
// 11000-11999: Inventory module errors
// 12000-12999: Azure CLI errors
// 13000-13999: Snapshot & Scheduler module errors
// 14000-14999: Auth errors

const (
	// ========== System & Common Errors (10000-10999) ==========

	// Success
	Success ErrorCode = 10000

	// Generic errors (10000-10099)
	InternalServerError ErrorCode = 10001
	InvalidParams       ErrorCode = 10002
	NotFound            ErrorCode = 10003
	Unauthorized        ErrorCode = 10004
	Forbidden           ErrorCode = 10005
	ServiceUnavailable  ErrorCode = 10006
	Timeout             ErrorCode = 10007

	// Database errors (10100-10199)
	DatabaseError  ErrorCode = 10100
	RecordNotFound ErrorCode = 10101

	// Cache errors (10200-10299)
	CacheError ErrorCode = 10200
	LockFailed ErrorCode = 10201

	// Validation errors (10300-10399)
	ValidationFailed   ErrorCode = 10300
	RequiredFieldEmpty ErrorCode = 10301

	// ========== Inventory Module Errors (11000-11999) ==========

	InventoryNotFound ErrorCode = 11000
	HostFileNotFound  ErrorCode = 11001
	NoEligibleVMs     ErrorCode = 11002

	// ========== Azure CLI Errors (12000-12999) ==========

	CloudCallFailed          ErrorCode = 12000
	NotLoggedIn              ErrorCode = 12001
	SubscriptionSwitchFailed ErrorCode = 12002
	VMDetailsFailed          ErrorCode = 12003
	LoginFailed              ErrorCode = 12004

	// ========== Snapshot & Scheduler Module Errors (13000-13999) ==========

	// Scheduling (13000-13099)
	InvalidTTL              ErrorCode = 13000
	SnapshotNotFound        ErrorCode = 13001
	InvalidStatusTransition ErrorCode = 13002

	// Snapshot operations (13100-13199)
	SnapshotCreateFailed ErrorCode = 13100
	SnapshotDeleteFailed ErrorCode = 13101
	SnapshotIDMissing    ErrorCode = 13102

	// Sweep (13200-13299)
	SweepInProgress ErrorCode = 13200
	SweepFailed     ErrorCode = 13201

	// ========== Auth Errors (14000-14999) ==========

	TokenInvalid ErrorCode = 14000
	TokenExpired ErrorCode = 14001
)

// errorMessages maps error codes to their default English messages
var errorMessages = map[ErrorCode]string{
	// System & Common
	Success:             "Success",
	InternalServerError: "Internal server error",
	InvalidParams:       "Invalid parameters",
	NotFound:            "Resource not found",
	Unauthorized:        "Unauthorized access",
	Forbidden:           "Access forbidden",
	ServiceUnavailable:  "Service temporarily unavailable",
	Timeout:             "Request timeout",

	// Database
	DatabaseError:  "Database operation failed",
	RecordNotFound: "Record not found in database",

	// Cache
	CacheError: "Cache operation failed",
	LockFailed: "Failed to acquire lock",

	// Validation
	ValidationFailed:   "Validation failed",
	RequiredFieldEmpty: "Required field is empty",

	// Inventory
	InventoryNotFound: "Inventory file not found",
	HostFileNotFound:  "Host list file not found",
	NoEligibleVMs:     "No eligible VMs after filtering",

	// Azure CLI
	CloudCallFailed:          "Azure CLI call failed",
	NotLoggedIn:              "Not logged in to Azure CLI",
	SubscriptionSwitchFailed: "Failed to switch subscription",
	VMDetailsFailed:          "Failed to get VM details",
	LoginFailed:              "Failed to initiate Azure login",

	// Snapshot & Scheduler
	InvalidTTL:              "TTL must be positive",
	SnapshotNotFound:        "Snapshot record not found",
	InvalidStatusTransition: "Invalid snapshot status transition",
	SnapshotCreateFailed:    "Failed to create snapshot",
	SnapshotDeleteFailed:    "Failed to delete snapshot",
	SnapshotIDMissing:       "Could not extract snapshot resource ID",
	SweepInProgress:         "A sweep is already running",
	SweepFailed:             "Sweep pass failed",

	// Auth
	TokenInvalid: "Invalid token",
	TokenExpired: "Token has expired",
}

// Message returns the default message for the error code
func (c ErrorCode) Message() string {
	if msg, ok := errorMessages[c]; ok {
		return msg
	}
	return "Unknown error"
}

// HTTPStatus returns the recommended HTTP status code for the error code
func (c ErrorCode) HTTPStatus() int {
	switch {
	case c == Success:
		return 200
	case c == Unauthorized, c == NotLoggedIn, c == TokenInvalid, c == TokenExpired:
		return 401
	case c == Forbidden:
		return 403
	case c == NotFound, c == SnapshotNotFound, c == RecordNotFound,
		c == InventoryNotFound, c == HostFileNotFound:
		return 404
	case c == SweepInProgress:
		return 409
	case c == ServiceUnavailable:
		return 503
	case c == CloudCallFailed, c == SubscriptionSwitchFailed, c == VMDetailsFailed:
		return 502
	case c >= 10300 && c < 10400: // Validation errors
		return 400
	case c == InvalidParams, c == InvalidTTL, c == NoEligibleVMs:
		return 400
	default:
		return 500
	}
}
