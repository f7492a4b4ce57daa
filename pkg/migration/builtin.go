package migration

// LegacyErrorCodeName is the well-known migration the ABCI bridge consults
// via Engine.IsActive to decide whether to rewrite attribute-specific
// deliver-path error codes into the closed Unknown code. It has no
// initialize/update behavior of its own: activation state is all the bridge
// needs from it.
const LegacyErrorCodeName = "legacy_error_code"

// LegacyErrorCode is the registry definition for the compatibility rewrite
// described in spec.md 4.5: a historical decoding bug made attribute-specific
// error codes non-deterministic across client versions, so once active this
// migration's presence (not its initialize/update) is the signal consulted
// on the deliver path.
var LegacyErrorCode = Definition{
	Name:        LegacyErrorCodeName,
	Description: "rewrite attribute-specific deliver-path error codes to Unknown",
	Kind:        KindRegular,
	Initialize:  func(interface{}) error { return nil },
	Update:      func(interface{}) error { return nil },
}
