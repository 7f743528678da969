package consts

const (
	// Action TypeIDs
	TransferID       uint8 = 0
	UpdateConfigID   uint8 = 1
	UpdateVammListID uint8 = 2
	OpenPositionID   uint8 = 3
	ClosePositionID  uint8 = 4
)
