package entity

// Balance is what a connector reports for one asset of one account. It is
// ephemeral: only Asset and Quantity survive into persistence.
//
// Quantity, Available and Frozen are decimal strings. For on-chain sources
// they may still be raw integer amounts, in which case Decimals tells the
// normalizer how to scale them; nil Decimals means the value is already
// human-readable (exchanges report decimals themselves).
type Balance struct {
	Asset     string
	Quantity  string
	Available string
	Frozen    string
	Decimals  *uint8
}
