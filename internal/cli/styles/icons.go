package styles

// Nerd Font icons (requires a Nerd Font to display correctly)
const (
	IconGlobe   = "\uf0ac" // browser/web
	IconCode    = "\uf121" // code
	IconDesktop = "\uf108" // desktop
	IconConfig  = "\ue615" // config

	IconCheck   = "\uf00c" // check
	IconX       = "\uf00d" // x
	IconWarning = "\uf071" // warning
	IconInfo    = "\uf05a" // info

	IconArrow     = "\uf061" // arrow right
	IconArrowLeft = "\uf060" // arrow left
)
