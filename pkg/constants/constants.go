package constants

import "time"

const (
	CallContractTimeout   = 10 * time.Second // timeout for contract call
	RPCTimeout            = 30 * time.Second // timeout for RPC passthrough
	TLSHandshakeTimeout   = 10 * time.Second // timeout for TLS handshake
	ResponseHeaderTimeout = 20 * time.Second // timeout for response header
	ExpectContinueTimeout = 1 * time.Second  // timeout for expect continue
	DelayBetweenRPCCalls  = 200              // delay in milliseconds between RPC failover attempts
	MaxResponseBodySize   = 10 * 1024 * 1024 // maximum response body size in bytes (10MB)
	BridgeWriteTimeout    = 10 * time.Second // timeout for a single websocket frame write
	BridgePongWait        = 60 * time.Second // read deadline extended by every pong
	BridgePingPeriod      = 50 * time.Second // must be shorter than BridgePongWait
)

// Network tags, one per chain provider
const (
	NetworkEthereum = "ethereum"
	NetworkSolana   = "solana"
	NetworkCosmos   = "cosmos"
	NetworkBitcoin  = "bitcoin"
	NetworkTon      = "ton"
	NetworkTron     = "tron"
	NetworkAptos    = "aptos"
)

var SupportedNetworks = []string{
	NetworkAptos,
	NetworkBitcoin,
	NetworkCosmos,
	NetworkEthereum,
	NetworkSolana,
	NetworkTon,
	NetworkTron,
}

// Internal vocabulary understood by every host
const (
	MethodRequestAccounts          = "requestAccounts"
	MethodSignMessage              = "signMessage"
	MethodSignPersonalMessage      = "signPersonalMessage"
	MethodSignTypedMessage         = "signTypedMessage"
	MethodSignTransaction          = "signTransaction"
	MethodSignRawTransaction       = "signRawTransaction"
	MethodSignRawTransactionMulti  = "signRawTransactionMulti"
	MethodSendTransaction          = "sendTransaction"
	MethodSendRawTransaction       = "sendRawTransaction"
	MethodEcRecover                = "ecRecover"
	MethodWatchAsset               = "watchAsset"
	MethodAddEthereumChain         = "addEthereumChain"
	MethodSwitchEthereumChain      = "switchEthereumChain"
	MethodSignPSBT                 = "signPSBT"
	MethodPushPSBT                 = "pushPSBT"
	MethodConnect                  = "connect"
	MethodEnable                   = "enable"
	MethodWalletRequestPermissions = "wallet_requestPermissions"
)

// Provider error codes (EIP-1193 / JSON-RPC)
const (
	ErrorCodeUserRejected      = 4001
	ErrorCodeUnauthorized      = 4100
	ErrorCodeUnsupportedMethod = 4200
	ErrorCodeDisconnected      = 4900
	ErrorCodeChainDisconnected = 4901
	ErrorCodeInvalidParams     = -32602
	ErrorCodeInternal          = -32603
	ErrorCodeResourceBusy      = -32002
)

// TonConnect wallet error codes
const (
	TonConnectUnknownError       = 0
	TonConnectBadRequest         = 1
	TonConnectUnknownApp         = 100
	TonConnectUserDeclined       = 300
	TonConnectMethodNotSupported = 400
)

// TonMainnetNetwork is the TonConnect chain id for mainnet
const TonMainnetNetwork = "-239"

const (
	DefaultTonWalletVersion = "v4R2"
	JSONRPCVersion          = "2.0"
)
