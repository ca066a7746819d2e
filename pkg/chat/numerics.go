package chat

// Numeric replies, subset in use. ERR_BADRELAYNICK comes from the
// bridging extension (573, taken from Oragono's ERR_CANNOTSENDRP).
const (
	RPL_WELCOME         = "001"
	RPL_YOURHOST        = "002"
	RPL_NAMREPLY        = "353"
	RPL_ENDOFNAMES      = "366"
	RPL_YOUREOPER       = "381"
	ERR_NOSUCHNICK      = "401"
	ERR_NOSUCHCHANNEL   = "403"
	ERR_CANNOTSENDTO    = "404"
	ERR_NOTEXTTOSEND    = "412"
	ERR_UNKNOWNCOMMAND  = "421"
	ERR_NONICKNAMEGIVEN = "431"
	ERR_ERRONEUSNICK    = "432"
	ERR_NICKNAMEINUSE   = "433"
	ERR_NOTREGISTERED   = "451"
	ERR_NEEDMOREPARAMS  = "461"
	ERR_PASSWDMISMATCH  = "464"
	ERR_BADRELAYNICK    = "573"
)
