package persona

import "github.com/decoynet/honeypot/pkg/extract"

// Category names one template family. Selection picks the category
// deterministically; the seed within it is random.
type Category string

const (
	CategoryMissingAccount Category = "missingAccount"
	CategoryMissingIfsc    Category = "missingIfsc"
	CategoryMissingUpi     Category = "missingUpi"
	CategoryMissingLink    Category = "missingLink"
	CategoryMissingPhone   Category = "missingPhone"
	CategoryNeedBackup     Category = "needBackup"
	CategoryVagueProbe     Category = "vagueProbe"
	CategoryUrgencyEcho    Category = "urgencyEcho"
	CategoryCredentialFlip Category = "credentialFlip"
)

// categoryTarget maps extraction categories to the intel kind they fish for.
// Non-extraction categories map to the empty kind.
var categoryTarget = map[Category]extract.Kind{
	CategoryMissingAccount: extract.KindBankAccount,
	CategoryMissingIfsc:    extract.KindIFSC,
	CategoryMissingUpi:     extract.KindUPI,
	CategoryMissingLink:    extract.KindLink,
	CategoryMissingPhone:   extract.KindPhone,
}

// categoryForKind is the inverse ladder used when walking missing intel.
var categoryForKind = map[extract.Kind]Category{
	extract.KindBankAccount: CategoryMissingAccount,
	extract.KindIFSC:        CategoryMissingIfsc,
	extract.KindUPI:         CategoryMissingUpi,
	extract.KindLink:        CategoryMissingLink,
	extract.KindPhone:       CategoryMissingPhone,
}

// Target returns the intel kind a category asks for, or "" for the
// conversational categories.
func Target(cat Category) extract.Kind {
	return categoryTarget[cat]
}

var templates = map[Category][]string{
	CategoryMissingAccount: {
		"I want to do this properly. Which account number should I send the money to?",
		"My son usually helps me with transfers. Can you give me the exact account number so I write it down?",
		"The bank form is asking for a beneficiary account number. What is yours?",
		"I am at the bank counter now. They need the full account number to proceed. Can you share it?",
		"Before I do anything, please send me the account number again so I don't make a mistake.",
	},
	CategoryMissingIfsc: {
		"The app is asking for an IFSC code along with the account. What should I enter there?",
		"My bank says the transfer needs the branch IFSC code. Can you send that?",
		"I have the account written down but it wants an IFSC too. Which branch is it?",
		"It says invalid IFSC when I leave it blank. What is the correct code for your branch?",
	},
	CategoryMissingUpi: {
		"Would it be easier if I paid by UPI? What is your UPI ID?",
		"My daughter set up a UPI app for me. Can you give me the UPI ID to send to?",
		"The bank transfer keeps failing. Do you have a UPI ID I can try instead?",
		"I only know how to scan or type a UPI ID. What should I type in?",
	},
	CategoryMissingLink: {
		"Is there a website where I can check this myself? Please send me the link.",
		"Can you send the link again? I think I deleted the earlier message by mistake.",
		"My phone did not show any link. Where exactly should I go to complete this?",
		"I want to read the details first. What is the official page for this?",
	},
	CategoryMissingPhone: {
		"Typing is hard for me. Is there a phone number where I can call you directly?",
		"If something goes wrong with the payment, what number should I call?",
		"Can you give me your number? I would feel better talking to a real person.",
		"My hearing is fine on calls. Share your contact number and I will ring you.",
	},
	CategoryNeedBackup: {
		"What if this account does not work? Do you have another account or number just in case?",
		"Last time a transfer bounced back. Is there a second option I can keep ready?",
		"Should I keep any alternate details handy in case the first payment fails?",
		"Banks sometimes block new payees for a day. Is there another way to reach or pay you?",
	},
	CategoryVagueProbe: {
		"Sorry, I did not fully understand. Can you explain what I need to do?",
		"Can you tell me a little more about this? I want to be sure I follow.",
		"What exactly happens next? Please walk me through it.",
		"I am a bit slow with these things. Could you repeat the main steps?",
	},
	CategoryUrgencyEcho: {
		"Oh no, I don't want my account blocked! Tell me exactly where to send it and I will do it right now.",
		"This is making me nervous. I am ready this minute, just give me the details again.",
		"Please don't let it lapse! I have my bank app open, what do I enter?",
		"I understand it is urgent. I am doing it now, send me everything I need in one message.",
	},
	CategoryCredentialFlip: {
		"I can never find those codes on my phone. Can you first confirm the account details from your side?",
		"Before I share anything like that, my bank told me to verify the receiver. What are your account details?",
		"I will look for that code, but meanwhile give me the account or UPI so I keep things moving.",
		"My phone shows so many messages, I get confused. While I search, what number should the money go to?",
		"The code is not coming through. Maybe we try the payment first? Where do I send it?",
	},
}

// Seeds returns the seed list for a category. The returned slice is shared
// and must not be modified.
func Seeds(cat Category) []string {
	return templates[cat]
}
