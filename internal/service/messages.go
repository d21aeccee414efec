package service

// Caller-facing messages. Credential and token failures stay generic.
const (
	msgSignupSuccess      = "User created! Please check your email to verify your account."
	msgMissingCredentials = "Please provide email and password!"
	msgIncorrectLogin     = "Incorrect email or password"
	msgUnverified         = "Please verify your email before logging in."
	msgVerifyInvalid      = "Verification link expired or invalid"
	msgEmailTaken         = "An account with that email address already exists."
	msgMissingEmail       = "Please provide your email address."
	msgNoUserWithEmail    = "There is no user with that email address."
	msgMailFailed         = "There was an error sending the email. Try again later!"
	msgResetInvalid       = "Token is invalid or has expired"
	msgWrongCurrent       = "Your current password is wrong."
	msgConcurrentUpdate   = "Your account was modified by another request. Please try again."
	msgNotLoggedIn        = "You are not logged in! Please log in to get access."
	msgSessionInvalid     = "Invalid token. Please log in again!"
	msgSessionExpired     = "Your token has expired! Please log in again."
	msgUserGone           = "The user belonging to this token no longer exists."
	msgPasswordChanged    = "User recently changed password! Please log in again."
	msgNoUserWithID       = "No user found with that ID"
	msgInternal           = "Something went wrong!"
)

