package payment

// chainIDToNetwork mirrors x402's NETWORK_TO_ID table inverted (id ->
// name), restricted to the handful of networks a seller realistically
// prices against. Ids cross-checked against go-ethereum's params chain
// configs and go-quai's chain config for real-world accuracy (see
// SPEC_FULL.md §4.16 and DESIGN.md for why those packages are read for
// reference only, not imported).
var chainIDToNetwork = map[int]string{
	8453:  "base",
	84532: "base-sepolia",
	1:     "ethereum",
	137:   "polygon",
}

// NetworkName resolves a chain id to its x402 network name, or "" if the
// chain id is not configured for payments.
func NetworkName(chainID int) (string, bool) {
	name, ok := chainIDToNetwork[chainID]
	return name, ok
}
