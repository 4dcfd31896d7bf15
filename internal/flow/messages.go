package flow

import "fmt"

// Canned onboarding replies, sent verbatim. Portuguese is the primary
// deployment language.
const (
	// MsgWelcome greets a brand-new contact and asks for their name.
	MsgWelcome = "Olá! 👋 Seja bem-vindo(a)!\n\n" +
		"Para que eu possa te atender melhor, por favor, qual é o seu nome?"

	// MsgInvalidName is sent when no valid name could be extracted.
	MsgInvalidName = "Desculpe, não consegui identificar um nome válido. " +
		"Por favor, me diga apenas seu nome:"

	// MsgNeedConfirmation is sent when a reply during confirmation is
	// neither a yes nor a no.
	MsgNeedConfirmation = "Por favor, responda apenas 'Sim' para confirmar ou 'Não' para corrigir seu nome."

	// MsgAskNameAgain is sent after the contact rejects the captured name.
	MsgAskNameAgain = "Ok, por favor me diga seu nome correto:"
)

// confirmNameMsg asks the contact to confirm the captured name.
func confirmNameMsg(name string) string {
	return fmt.Sprintf("Prazer em te conhecer, %s! 😊\n\n"+
		"Está correto? Por favor, responda apenas:\n"+
		"- \"Sim\" para confirmar\n"+
		"- \"Não\" para corrigir", name)
}

// nameSavedMsg welcomes the contact after their name is confirmed.
func nameSavedMsg(name string) string {
	return fmt.Sprintf("Ótimo, %s! 🎉\n\nAgora podemos conversar. Como posso te ajudar?", name)
}
