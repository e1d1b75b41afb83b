package boreal

// SDKVersion is the driver version reported to the warehouse during
// authentication.
const SDKVersion = "0.1.0"

const (
	clientAppID = "BorealGo"
	userAgent   = "boreal-sql-go/" + SDKVersion
)
