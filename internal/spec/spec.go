package spec

// Codec constants
const (
	MAGIC         = "stg" // Default marker prepended to every hidden payload
	TERMINATOR    = 0x00  // Ends the framed payload
	BITS_PER_BYTE = 8     // One pixel byte carries one payload bit
)

// Error tokens. Callers dispatch on these prefixes, do not change them.
const (
	STEG_TOO_BIG = "STEG_TOO_BIG"
	STEG_MSG     = "STEG_MSG"
	STEG_NO_MSG  = "STEG_NO_MSG"
	STEG_BAD_MSG = "STEG_BAD_MSG"
)

// Relay constants
const (
	DEFAULT_DOMAIN  = "carrier.example.com"
	DEFAULT_ADDR    = ":5353"
	DEFAULT_HTTP    = ":8080"
	DEFAULT_TTL     = 300        // Seconds for chunk and manifest records
	LIST_TTL        = 30         // Carrier listings change, keep them short
	SAFE_CHUNK_SIZE = 250        // Encoded TXT string limit (DNS max is 255)
	CHUNK_MAGIC     = 0x53544743 // "STGC"
	CARRIER_ID_SIZE = 8
	FETCH_WORKERS   = 8
)
