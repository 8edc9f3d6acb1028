package camera

// Well-known property names. Which of them a camera exposes depends on its driver.
const (
	PropDateTime     = "/main/settings/datetime"
	PropOwnerName    = "/main/settings/ownername"
	PropBatteryLevel = "/main/status/batterylevel"

	PropISO          = "/main/imgsettings/iso"
	PropWhiteBalance = "/main/imgsettings/whitebalance"

	PropFocusMode    = "/main/capturesettings/focusmode"
	PropShutterSpeed = "/main/capturesettings/shutterspeed"
)
