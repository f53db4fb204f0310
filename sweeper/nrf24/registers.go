package nrf24

// Commands.
const (
	cmdReadRegister   = 0x00
	cmdWriteRegister  = 0x20
	cmdWriteTxPayload = 0xA0
	cmdFlushTx        = 0xE1
	cmdFlushRx        = 0xE2
	cmdNop            = 0xFF
)

// Registers.
const (
	regConfig    = 0x00
	regEnRxAddr  = 0x02
	regSetupAW   = 0x03
	regSetupRetr = 0x04
	regRFCh      = 0x05
	regRFSetup   = 0x06
	regStatus    = 0x07
	regRxAddrP0  = 0x0A
	regTxAddr    = 0x10
	regRxPwP0    = 0x11
	regDynPD     = 0x1C
	regFeature   = 0x1D
)

// CONFIG bits.
const (
	bitPrimRx = 1 << 0
	bitPwrUp  = 1 << 1
	bitCRCO   = 1 << 2
	bitEnCRC  = 1 << 3
)

// STATUS bits.
const (
	bitMaxRT = 1 << 4
	bitTxDS  = 1 << 5
	bitRxDR  = 1 << 6

	statusIRQMask = bitMaxRT | bitTxDS | bitRxDR
)

// RF_SETUP bits.
const (
	bitRFDRHigh = 1 << 3
	bitRFDRLow  = 1 << 5
)
