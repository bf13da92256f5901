package cosmos

import (
	"context"
	"errors"
)

var (
	ErrUnmatchedChainID = errors.New("Unmatched chain id with the offline signer")
	ErrUnknownSigner    = errors.New("Unknown signer address")
)

// OfflineAminoSigner signs amino documents for one chain
type OfflineAminoSigner struct {
	provider *Provider
	chainID  string
}

func (s *OfflineAminoSigner) GetAccounts(ctx context.Context) ([]AccountData, error) {
	return accounts(ctx, s.provider, s.chainID)
}

func (s *OfflineAminoSigner) SignAmino(ctx context.Context, signer string, doc StdSignDoc) (*AminoSignResponse, error) {
	return s.provider.SignAmino(ctx, s.chainID, signer, doc)
}

// OfflineDirectSigner signs protobuf documents for one chain
type OfflineDirectSigner struct {
	provider *Provider
	chainID  string
}

func (s *OfflineDirectSigner) GetAccounts(ctx context.Context) ([]AccountData, error) {
	return accounts(ctx, s.provider, s.chainID)
}

// SignDirect checks that doc targets the signer's chain and that signer is
// the wallet's address before signing
func (s *OfflineDirectSigner) SignDirect(ctx context.Context, signer string, doc DirectSignDoc) (*DirectSignResponse, error) {
	if doc.ChainID != s.chainID {
		return nil, ErrUnmatchedChainID
	}

	key, err := s.provider.GetKey(ctx, doc.ChainID)
	if err != nil {
		return nil, err
	}
	if key.Address != signer {
		return nil, ErrUnknownSigner
	}

	return s.provider.SignDirect(ctx, s.chainID, signer, doc)
}

func accounts(ctx context.Context, p *Provider, chainID string) ([]AccountData, error) {
	key, err := p.GetKey(ctx, chainID)
	if err != nil {
		return nil, err
	}
	return []AccountData{{
		Address: key.Bech32Address,
		Algo:    key.Algo,
		PubKey:  key.PubKey,
	}}, nil
}
