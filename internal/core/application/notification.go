package application

import (
	"encoding/json"
	"strconv"

	"github.com/tdex-network/watchdescriptor/internal/core/domain"
)

const (
	TopicUtxoDeposit = "utxo_deposit"
	TopicUtxoSpent   = "utxo_spent"
)

// Topics returns the list of topics published by the daemon.
func Topics() []string {
	return []string{TopicUtxoDeposit, TopicUtxoSpent}
}

func topicForMovement(m domain.CoinMovement) string {
	if m.Direction == domain.Spend {
		return TopicUtxoSpent
	}
	return TopicUtxoDeposit
}

// notificationMessage returns the topic and the serialized notification for
// the given coin movement. The payload is wrapped in an object keyed by the
// topic.
func notificationMessage(m domain.CoinMovement) (string, string) {
	topic := topicForMovement(m)
	payload := map[string]interface{}{
		"account":       m.Account,
		"outpoint":      m.Outpoint,
		"spending_txid": m.SpendingTxid,
		"amount_msat":   m.Amount * 1000,
		"coin_type":     m.CoinType,
		"timestamp":     strconv.FormatUint(m.Timestamp, 10),
		"blockheight":   strconv.FormatUint(uint64(m.BlockHeight), 10),
	}
	if m.Direction == domain.Deposit {
		payload["transfer_from"] = m.CounterAccount
	}
	message, _ := json.Marshal(map[string]interface{}{topic: payload})
	return topic, string(message)
}
