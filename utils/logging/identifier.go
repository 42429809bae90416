package logging

import (
	"github.com/lsp-research/lspmarket/model/lsp"
)

func IDs(ids lsp.IdentifierList) []string {
	return ids.Strings()
}

// Accounts renders balances as id=net pairs in id order.
func Accounts(accounts map[lsp.Identifier]lsp.Account) []string {
	ids := make(lsp.IdentifierList, 0, len(accounts))
	for id := range accounts {
		ids = append(ids, id)
	}
	ss := make([]string, 0, len(ids))
	for _, id := range ids.Sorted() {
		ss = append(ss, id.String()+"="+accounts[id].Net().String())
	}
	return ss
}
