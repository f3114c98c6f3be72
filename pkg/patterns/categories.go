package patterns

// =============================================================================
// PATTERN DEFINITIONS BY CATEGORY
// All patterns are registered here and compiled once at package init.
// This provides a single source of truth for the scam lexicon.
// =============================================================================

// --- URGENCY TACTICS ---
func (r *Registry) registerUrgencyPatterns() {
	cat := CategoryUrgency

	r.register("urgent_word", `(?i)\burgent(ly)?\b`, cat, 2, "Explicit urgency marker")
	r.register("immediately", `(?i)\bimmediate(ly)?\b`, cat, 2, "Demand for immediate action")
	r.register("act_now", `(?i)\bact\s+now\b`, cat, 2, "Act-now pressure")
	r.register("right_away", `(?i)\bright\s+away\b`, cat, 1, "Right-away pressure")
	r.register("asap", `(?i)\basap\b`, cat, 1, "ASAP pressure")
	r.register("deadline_hours", `(?i)\bwithin\s+\d+\s+(hour|minute|min)s?\b`, cat, 2, "Short deadline")
	r.register("expires_today", `(?i)\b(expires?|valid)\s+(today|soon|in)\b`, cat, 2, "Expiry pressure")
	r.register("last_chance", `(?i)\b(last|final)\s+(chance|warning|notice|reminder)\b`, cat, 3, "Final-warning framing")
	r.register("hurry", `(?i)\bhurry\b`, cat, 1, "Hurry pressure")
	r.register("time_running_out", `(?i)time\s+is\s+running\s+out`, cat, 2, "Running-out-of-time framing")
	r.register("before_too_late", `(?i)before\s+it('?s| is)\s+too\s+late`, cat, 2, "Too-late framing")
}

// --- FEAR AND THREAT TACTICS ---
func (r *Registry) registerFearPatterns() {
	cat := CategoryFear

	r.register("account_blocked", `(?i)\baccount\s+(will\s+be\s+)?(blocked|suspended|closed|frozen|deactivated)\b`, cat, 3, "Account-blocked threat")
	r.register("card_blocked", `(?i)\b(card|atm)\s+(will\s+be\s+)?(blocked|deactivated)\b`, cat, 3, "Card-blocked threat")
	r.register("legal_action", `(?i)\blegal\s+action\b`, cat, 3, "Legal-action threat")
	r.register("police_arrest", `(?i)\b(police|arrest(ed)?|warrant|fir)\b`, cat, 2, "Police/arrest threat")
	r.register("penalty_fine", `(?i)\b(penalty|fine|charged)\b`, cat, 2, "Penalty threat")
	r.register("unauthorized_activity", `(?i)\b(unauthori[sz]ed|suspicious)\s+(activity|transaction|login|access)\b`, cat, 3, "Fabricated incident")
	r.register("kyc_expired", `(?i)\bkyc\s+(update|expired?|pending|verification)\b`, cat, 3, "KYC expiry scare")
	r.register("service_disconnect", `(?i)\b(electricity|sim|number|connection)\s+(will\s+be\s+)?(disconnected|deactivated)\b`, cat, 3, "Service disconnection threat")
}

// --- AUTHORITY IMPERSONATION ---
func (r *Registry) registerAuthorityPatterns() {
	cat := CategoryAuthority

	r.register("bank_officer", `(?i)\b(bank|branch)\s+(officer|manager|executive|representative)\b`, cat, 2, "Bank staff impersonation")
	r.register("bank_names", `(?i)\b(sbi|hdfc|icici|axis|pnb|kotak|rbi)\b`, cat, 2, "Named Indian bank or regulator")
	r.register("customer_care", `(?i)\bcustomer\s+(care|support|service)\b`, cat, 1, "Customer-care framing")
	r.register("government_dept", `(?i)\b(income\s+tax|customs|trai|uidai|epfo|government)\b`, cat, 2, "Government department")
	r.register("official_notice", `(?i)\bofficial\s+(notice|communication|notification)\b`, cat, 2, "Official-notice framing")
	r.register("tech_support", `(?i)\b(microsoft|windows|google|apple)\s+(support|security|team)\b`, cat, 2, "Tech-support impersonation")
	r.register("verification_dept", `(?i)\bverification\s+(department|team|officer)\b`, cat, 2, "Verification-department framing")
}

// --- GREED AND PRIZE BAIT ---
func (r *Registry) registerGreedPatterns() {
	cat := CategoryGreed

	r.register("you_have_won", `(?i)\byou\s+(have\s+)?won\b`, cat, 3, "Lottery-win bait")
	r.register("congratulations", `(?i)\bcongratulations?\b`, cat, 1, "Congratulatory bait")
	r.register("lottery_prize", `(?i)\b(lottery|prize|jackpot|lucky\s+draw)\b`, cat, 3, "Lottery vocabulary")
	r.register("cash_reward", `(?i)\b(cash\s+reward|cashback|bonus)\b`, cat, 2, "Cash-reward bait")
	r.register("gift_card", `(?i)\bgift\s+card\b`, cat, 3, "Gift-card bait")
	r.register("free_money", `(?i)\bfree\s+(money|recharge|gift)\b`, cat, 2, "Free-money bait")
	r.register("guaranteed_returns", `(?i)\b(guaranteed|double|triple)\s+(returns?|profit|income|money)\b`, cat, 3, "Investment-return bait")
	r.register("work_from_home", `(?i)\b(work\s+from\s+home|part\s*time\s+job|earn\s+daily)\b`, cat, 2, "Job bait")
	r.register("selected_winner", `(?i)\b(selected|chosen)\s+(as\s+)?(a\s+)?winner\b`, cat, 3, "Winner-selection bait")
}

// --- CREDENTIAL THEFT REQUESTS ---
func (r *Registry) registerCredentialRequestPatterns() {
	cat := CategoryCredentialRequest

	r.register("otp_request", `(?i)\botp\b`, cat, 3, "OTP mention")
	r.register("pin_request", `(?i)\b(atm\s+)?pin\b`, cat, 3, "PIN mention")
	r.register("cvv_request", `(?i)\bcvv\b`, cat, 3, "CVV mention")
	r.register("password_request", `(?i)\bpassword\b`, cat, 3, "Password mention")
	r.register("card_number", `(?i)\b(card|debit|credit)\s+(number|details?)\b`, cat, 3, "Card-detail request")
	r.register("verification_code", `(?i)\bverification\s+code\b`, cat, 3, "Verification-code request")
	r.register("aadhaar_pan", `(?i)\b(aadhaa?r|pan\s+card)\b`, cat, 2, "Identity-document request")
	r.register("net_banking", `(?i)\bnet\s*banking\b`, cat, 2, "Net-banking credential context")
	r.register("share_details", `(?i)\b(share|send|provide|confirm)\s+(your|the)\s+(details?|credentials?)\b`, cat, 2, "Detail-sharing request")
}

// --- PAYMENT DEMANDS ---
func (r *Registry) registerPaymentDemandPatterns() {
	cat := CategoryPaymentDemand

	r.register("send_money", `(?i)\b(send|transfer|pay)\s+(me\s+)?(rs\.?|₹|inr)?\s*\d+`, cat, 3, "Direct payment demand")
	r.register("rupee_amount", `(?i)(₹|\brs\.?\s?|\binr\s?)\d[\d,]*`, cat, 2, "Rupee amount")
	r.register("processing_fee", `(?i)\b(processing|registration|handling|delivery|custom)\s+(fee|charge)s?\b`, cat, 3, "Advance-fee demand")
	r.register("upi_mention", `(?i)\bupi\b`, cat, 2, "UPI payment rail")
	r.register("paytm_gpay", `(?i)\b(paytm|phonepe|gpay|google\s+pay)\b`, cat, 2, "Wallet app mention")
	r.register("deposit_amount", `(?i)\bdeposit\b`, cat, 2, "Deposit demand")
	r.register("refund_bait", `(?i)\brefund\b`, cat, 2, "Refund bait")
	r.register("transfer_verb", `(?i)\btransfer\s+(the\s+)?(money|amount|funds)\b`, cat, 3, "Transfer demand")
	r.register("verify_payment", `(?i)\b(verify|confirm)\s+.{0,20}(payment|transaction)\b`, cat, 2, "Payment verification demand")
}

// --- SUSPICIOUS URL SHAPES ---
func (r *Registry) registerSuspiciousURLPatterns() {
	cat := CategorySuspiciousURL

	r.register("url_shortener", `(?i)\b(bit\.ly|tinyurl\.com|goo\.gl|t\.co|is\.gd|cutt\.ly|rb\.gy)/\S+`, cat, 3, "URL shortener")
	r.register("messaging_link", `(?i)\b(t\.me|wa\.me)/\S+`, cat, 3, "Messaging deep link")
	r.register("ip_literal_url", `(?i)https?://\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}`, cat, 3, "IP-literal URL")
	r.register("free_tld", `(?i)\b[a-z0-9-]+\.(tk|ml|ga|cf|gq)\b`, cat, 3, "Free-TLD domain")
	r.register("lookalike_bank", `(?i)\b[a-z0-9-]*(sbi|hdfc|icici|axis|paytm)[a-z0-9-]*\.(com|in|net|org|xyz|online|site)\b`, cat, 2, "Bank-lookalike domain")
	r.register("suspicious_tld", `(?i)\b[a-z0-9-]+\.(xyz|top|online|site|club|icu)\b`, cat, 2, "Cheap-TLD domain")
}

// --- SHORTCUT HELPERS ---
// Small verb lexicons used by the detector's short-circuit rules, not by
// density scoring.
func (r *Registry) registerShortcutPatterns() {
	r.register("claim_verb", `(?i)\b(claim|redeem|collect)\b`, CategoryClaimAction, 1, "Prize-claim action verb")
	r.register("login_verb", `(?i)\b(log\s*in|sign\s*in|login)\b`, CategoryLoginVerb, 1, "Login action verb")
	r.register("click_verb", `(?i)\b(click|tap|open)\s+(on\s+)?(the\s+)?(link|here|below)\b`, CategoryLoginVerb, 1, "Click-the-link verb")
	r.register("visit_verb", `(?i)\b(visit|go\s+to)\b`, CategoryLoginVerb, 1, "Visit action verb")
	r.register("update_verb", `(?i)\bupdate\s+(your|the)\b`, CategoryLoginVerb, 1, "Update-your action verb")
}

// --- PROMPT INJECTION ---
// Meta-instructions aimed at the honeypot itself rather than the victim.
func (r *Registry) registerInjectionPatterns() {
	cat := CategoryInjection

	r.register("ignore_previous", `(?i)ignore\s+(all\s+)?(previous|prior|above)\s+(instructions?|prompts?|messages?)`, cat, 3, "Instruction override attempt")
	r.register("disregard_instructions", `(?i)disregard\s+(all\s+)?(previous|your)\s+(instructions?|rules?)`, cat, 3, "Instruction override attempt")
	r.register("repeat_system_prompt", `(?i)(repeat|reveal|show|print|tell\s+me)\s+(me\s+)?your\s+(system\s+)?(prompt|instructions?)`, cat, 3, "System prompt extraction")
	r.register("what_are_instructions", `(?i)what\s+(are|were)\s+your\s+(instructions?|rules?|guidelines?)`, cat, 2, "Instruction probing")
	r.register("are_you_ai", `(?i)are\s+you\s+(an?\s+)?(ai|bot|robot|chatbot|language\s+model)`, cat, 2, "Identity probing")
	r.register("you_are_ai", `(?i)you('?re| are)\s+(an?\s+)?(ai|bot|chatbot|language\s+model)`, cat, 2, "Identity assertion")
	r.register("forget_everything", `(?i)forget\s+(everything|all|your)`, cat, 2, "Memory reset attempt")
	r.register("stop_roleplay", `(?i)(stop|end|exit|quit)\s+(the\s+)?(roleplay|acting|pretending|character)`, cat, 3, "Role-exit attempt")
	r.register("new_role", `(?i)you\s+are\s+now\s+(a|an|my)\b`, cat, 2, "Role reassignment")
	r.register("act_as", `(?i)\bact\s+as\s+(a|an|if)\b`, cat, 2, "Role reassignment")
	r.register("developer_mode", `(?i)\b(developer|debug|admin)\s+mode\b`, cat, 3, "Mode-switch attempt")
	r.register("system_colon", `(?i)^\s*system\s*:`, cat, 3, "Injected system turn")
}
