package model

// OperationRecord captures one completed open or close operation for the
// journal.
type OperationRecord struct {
	Kind        string `json:"kind"`
	Pool        string `json:"pool"`
	PositionID  string `json:"position_id"`
	Token0      string `json:"token0"`
	Token1      string `json:"token1"`
	TickLower   int32  `json:"tick_lower"`
	TickUpper   int32  `json:"tick_upper"`
	Funding     string `json:"funding,omitempty"`
	Amount0     string `json:"amount0"`
	Amount1     string `json:"amount1"`
	AmountOut   string `json:"amount_out,omitempty"`
	Liquidity   string `json:"liquidity"`
	SlippageBps uint32 `json:"slippage_bps"`
	Status      string `json:"status"`
	CompletedAt string `json:"completed_at"`
}
