package app

// Тексты сообщений. Шаблоны с пометкой MarkdownV2 уже экранированы;
// подставляемые значения экранируются при рендере.
const (
	msgStart = "👋 Welcome to SnapSense Bot!\n\n📸 I can help you analyze images using various AI models.\n\n👇 Choose an option to get started:"

	msgMenu            = "📸 *SnapSense Menu*\n\n👇 Select an analysis option:" // MarkdownV2
	msgTaskSelected    = "✅ Task selected: %s.\n\n👇 Now, please send me the photo you want to analyze."
	msgProcessing      = "✅ Got it!\n\n⏳ Processing your photo now..."
	msgCancelled       = "❌ Operation cancelled.\n\n🤔 What would you like to do next?"
	msgGenericError    = "❌ Oops! Something went wrong.\n\nPlease use /start to begin a new task."
	msgProcessingError = "❌ Error processing %s 😥\n\nPlease try again with another photo."
	msgInvalidState    = "👋 Hey there!\n\n🤔 It looks like you sent a photo without selecting a task first.\n\nPlease use /start to choose an option from the menu."
	msgSendPhoto       = "📸 Please send a photo to proceed, or use /cancel to pick another task."
	msgUseMenu         = "👇 Please use /start to choose an option from the menu."
	msgFormatFallback  = "✅ %s is complete, but the result could not be formatted."
	msgBusy            = "⏳ Still working on your previous photo. Use /cancel to abort it."

	// MarkdownV2
	tplResultHeader  = "📸 *%s Result*\n\n"
	tplEmotionHeader = "😃 *%s Result*\n\n"
	tplTextHeader    = "📝 *%s Result*\n\n"
	tplModelInfo     = "🧠 *Model:* %s"
	tplSpeedStats    = "⚙️ *Speed Stats \\(ms\\)*\n" +
		"• Preprocessing: `%.2f`\n" +
		"• Inference: `%.2f`\n" +
		"• Postprocessing: `%.2f`"
	tplObjectLine     = "🔹 %s: %d"
	tplNudityDetected = "🚫 Detected sensitive content:\n• %s"
	tplSegments       = "🔍 Detected %d distinct segments"
	tplFacesDetected  = "Detected %d face%s:\n\n"
	tplFace           = "*Face %d:*\n🎭 Dominant Emotion: %s\n```\n%s\n```\n\n"
	tplCodeBlock      = "```\n%s\n```"

	msgNoObjects = "👁️‍🗨️ No objects detected\\."
	msgNoNudity  = "✅ No sensitive content detected"
	msgNoText    = "❌📄 No text could be extracted\\."
	msgNoFaces   = "😶 No faces detected\\."
)

// Commands список команд для меню Telegram
var Commands = []struct {
	Name        string
	Description string
}{
	{"start", "Start the bot"},
	{"cancel", "Cancel current operation"},
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
